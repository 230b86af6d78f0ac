package v1

import (
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// clientIP returns the first X-Forwarded-For entry that parses as an IP,
// then X-Real-IP, then the connection address. An empty result means the
// client could not be identified.
func clientIP(c *fiber.Ctx) string {
	if forwarded := c.Get(fiber.HeaderXForwardedFor); forwarded != "" {
		for _, candidate := range strings.Split(forwarded, ",") {
			if ip, parsed := normalizeIP(candidate); parsed != nil {
				return ip
			}
		}
	}

	if ip, parsed := normalizeIP(c.Get("X-Real-IP")); parsed != nil {
		return ip
	}

	if addr := c.Context().RemoteAddr(); addr != nil {
		if ip, parsed := normalizeIP(addr.String()); parsed != nil && !parsed.IsUnspecified() {
			return ip
		}
	}

	return ""
}

func normalizeIP(raw string) (string, net.IP) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"")
	if clean == "" {
		return "", nil
	}

	// Remove zone identifier if present (e.g. fe80::1%eth0)
	if percent := strings.Index(clean, "%"); percent != -1 {
		clean = clean[:percent]
	}

	// Try parsing addr:port (handles both IPv4:port and [IPv6]:port)
	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		return fromAddr(addrPort.Addr())
	}

	trimmed := strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		return fromAddr(addr)
	}

	if host, _, err := net.SplitHostPort(clean); err == nil {
		return normalizeIP(host)
	}

	return "", nil
}

func fromAddr(addr netip.Addr) (string, net.IP) {
	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	ipStr := addr.String()
	return ipStr, net.ParseIP(ipStr)
}
