package supervisor

import (
	"os"
	"strings"

	"github.com/soho-iot/zerotrust/config"
	"github.com/soho-iot/zerotrust/onboarding"
)

// newWatcher picks the link-layer event source per cfg: a hostapd
// association log when configured, falling back to polling the kernel ARP
// table (/proc/net/arp) on the configured WiFi interface otherwise.
func newWatcher(cfg config.Config) (onboarding.Watcher, error) {
	if cfg.HostapdLogPath != "" {
		return onboarding.NewHostapdLogWatcher(cfg.HostapdLogPath), nil
	}
	return onboarding.NewARPTableWatcher(readARPTable), nil
}

// readARPTable returns the lines of /proc/net/arp, the default source an
// ARPTableWatcher polls for newly associated MACs when no hostapd log is
// configured.
func readARPTable() ([]string, error) {
	data, err := os.ReadFile("/proc/net/arp")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return strings.Split(string(data), "\n"), nil
}
