package onboarding

import (
	"bufio"
	"context"
	"io"
	"os"
	"regexp"
	"strings"
)

// Watcher produces newly observed MAC addresses from a link-layer event
// source. Implementations must be safe to call repeatedly at the admission
// poller's cadence; each call returns only MACs observed since the previous
// call (a delta, not a full replay).
type Watcher interface {
	PollMACs(ctx context.Context) ([]string, error)
}

// hostapdAssocLine matches hostapd's "STA-... associated" log lines and
// captures the client MAC, grounded on the association-log format consumed
// by the reference wifi detector.
var hostapdAssocLine = regexp.MustCompile(`([0-9A-Fa-f]{2}(:[0-9A-Fa-f]{2}){5}).*associated`)

// HostapdLogWatcher tails a hostapd association log, emitting each
// newly-associated client MAC once.
type HostapdLogWatcher struct {
	path   string
	offset int64
}

// NewHostapdLogWatcher watches the hostapd log at path.
func NewHostapdLogWatcher(path string) *HostapdLogWatcher {
	return &HostapdLogWatcher{path: path}
}

func (w *HostapdLogWatcher) PollMACs(ctx context.Context) ([]string, error) {
	f, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		return nil, err
	}

	var macs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return macs, ctx.Err()
		default:
		}
		line := scanner.Text()
		if m := hostapdAssocLine.FindStringSubmatch(line); m != nil {
			macs = append(macs, strings.ToUpper(m[1]))
		}
	}
	if pos, err := f.Seek(0, io.SeekCurrent); err == nil {
		w.offset = pos
	}
	return macs, scanner.Err()
}

// ARPTableWatcher polls an ARP-table-shaped source (e.g. /proc/net/arp) as
// a fallback when no hostapd log is configured. ReadTable returns the
// current lines of the table on each poll.
type ARPTableWatcher struct {
	ReadTable func() ([]string, error)
	seen      map[string]bool
}

// NewARPTableWatcher wraps a table-reading function. Pass a function that
// reads /proc/net/arp (or an equivalent) for production use; tests supply a
// fake.
func NewARPTableWatcher(readTable func() ([]string, error)) *ARPTableWatcher {
	return &ARPTableWatcher{ReadTable: readTable, seen: make(map[string]bool)}
}

var arpLineMAC = regexp.MustCompile(`([0-9A-Fa-f]{2}(:[0-9A-Fa-f]{2}){5})`)

func (w *ARPTableWatcher) PollMACs(ctx context.Context) ([]string, error) {
	lines, err := w.ReadTable()
	if err != nil {
		return nil, err
	}

	var fresh []string
	for _, line := range lines {
		select {
		case <-ctx.Done():
			return fresh, ctx.Err()
		default:
		}
		m := arpLineMAC.FindString(line)
		if m == "" {
			continue
		}
		mac := strings.ToUpper(m)
		if !w.seen[mac] {
			w.seen[mac] = true
			fresh = append(fresh, mac)
		}
	}
	return fresh, nil
}
