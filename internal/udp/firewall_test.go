package udp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erikh/hoover/internal/conf"
)

func TestNewFirewallManager(t *testing.T) {
	mgr := NewFirewallManager(&conf.FirewallConfig{
		Enabled:           true,
		Backend:           "firewalld",
		BlockDurationSecs: 600,
	})

	assert.Equal(t, "firewalld", mgr.backend)
	assert.Empty(t, mgr.blocked)
}

func TestIPFamily(t *testing.T) {
	assert.Equal(t, "ipv4", ipFamily(net.ParseIP("192.0.2.1")))
	assert.Equal(t, "ipv6", ipFamily(net.ParseIP("2001:db8::1")))
}
