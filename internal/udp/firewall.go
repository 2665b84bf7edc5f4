package udp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/errors"
	"github.com/erikh/hoover/internal/logging"
)

// FirewallManager blocks source addresses that fail packet decode, through
// either firewalld or nftables. Blocks expire after the configured duration.
type FirewallManager struct {
	backend       string
	blockDuration time.Duration

	mu      sync.Mutex
	blocked map[string]bool

	log *slog.Logger
}

// NewFirewallManager creates a manager for the configured backend.
func NewFirewallManager(cfg *conf.FirewallConfig) *FirewallManager {
	return &FirewallManager{
		backend:       cfg.Backend,
		blockDuration: time.Duration(cfg.BlockDurationSecs) * time.Second,
		blocked:       make(map[string]bool),
		log:           logging.ForService("firewall"),
	}
}

// BlockIP blocks an address. No-op if already blocked.
func (f *FirewallManager) BlockIP(ctx context.Context, ip net.IP) {
	key := ip.String()

	f.mu.Lock()
	if f.blocked[key] {
		f.mu.Unlock()
		return
	}
	f.blocked[key] = true
	f.mu.Unlock()

	var err error
	switch f.backend {
	case "firewalld":
		err = runFirewalld(ctx, "--add-rich-rule", ip)
	case "nftables":
		err = blockNftables(ctx, ip)
	default:
		f.log.Error("unknown firewall backend", "backend", f.backend)
		return
	}

	if err != nil {
		f.log.Error("failed to block IP", "ip", key, "error", err)
		f.mu.Lock()
		delete(f.blocked, key)
		f.mu.Unlock()
		return
	}

	f.log.Warn("blocked IP", "ip", key, "backend", f.backend)
	f.scheduleUnblock(ip)
}

// scheduleUnblock removes the rule after the block duration.
func (f *FirewallManager) scheduleUnblock(ip net.IP) {
	go func() {
		time.Sleep(f.blockDuration)

		var err error
		switch f.backend {
		case "firewalld":
			err = runFirewalld(context.Background(), "--remove-rich-rule", ip)
		case "nftables":
			err = flushNftables(context.Background())
		}

		f.mu.Lock()
		delete(f.blocked, ip.String())
		f.mu.Unlock()

		if err != nil {
			f.log.Error("failed to unblock IP", "ip", ip.String(), "error", err)
			return
		}
		f.log.Info("unblocked IP", "ip", ip.String())
	}()
}

func ipFamily(ip net.IP) string {
	if ip.To4() != nil {
		return "ipv4"
	}
	return "ipv6"
}

func runFirewalld(ctx context.Context, verb string, ip net.IP) error {
	rule := fmt.Sprintf("rule family=%q source address=%q drop", ipFamily(ip), ip.String())

	out, err := exec.CommandContext(ctx, "firewall-cmd", verb, rule).CombinedOutput()
	if err != nil {
		return errors.New(err).
			Component("udp-firewall").
			Category(errors.CategoryFirewall).
			Context("command", "firewall-cmd").
			Context("output", string(out)).
			Build()
	}
	return nil
}

func blockNftables(ctx context.Context, ip net.IP) error {
	family := "ip"
	if ip.To4() == nil {
		family = "ip6"
	}

	out, err := exec.CommandContext(ctx, "nft",
		"add", "rule", "inet", "filter", "input",
		family, "saddr", ip.String(), "drop").CombinedOutput()
	if err != nil {
		return errors.New(err).
			Component("udp-firewall").
			Category(errors.CategoryFirewall).
			Context("command", "nft").
			Context("output", string(out)).
			Build()
	}
	return nil
}

// flushNftables clears the input chain. Deleting a single nftables rule needs
// its handle; flushing is the fallback that keeps no state.
func flushNftables(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, "nft",
		"flush", "chain", "inet", "filter", "input").CombinedOutput()
	if err != nil {
		return errors.New(err).
			Component("udp-firewall").
			Category(errors.CategoryFirewall).
			Context("command", "nft").
			Context("output", string(out)).
			Build()
	}
	return nil
}
