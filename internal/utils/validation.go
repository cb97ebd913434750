package utils

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct runs the shared validator over a tagged struct.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidateURL validates a URL before the resolver is allowed to fetch it,
// rejecting anything that could be used for SSRF.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %v", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("only HTTP and HTTPS protocols are allowed")
	}

	if parsedURL.Hostname() == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	if err := checkSSRFProtection(parsedURL.Hostname()); err != nil {
		return err
	}

	return nil
}

// checkSSRFProtection prevents requests to private/internal networks
func checkSSRFProtection(hostname string) error {
	if isLocalhost(hostname) {
		return fmt.Errorf("requests to localhost are not allowed")
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		// Be strict: an unresolvable hostname is rejected rather than
		// passed through to the HTTP client.
		return fmt.Errorf("unable to resolve hostname: %v", err)
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("requests to private/internal IP addresses are not allowed")
		}
	}

	return nil
}

// isLocalhost checks for localhost variations
func isLocalhost(hostname string) bool {
	localhost := []string{
		"localhost",
		"127.0.0.1",
		"::1",
		"0.0.0.0",
	}

	for _, local := range localhost {
		if strings.EqualFold(hostname, local) {
			return true
		}
	}

	return false
}

// isPrivateIP checks if an IP address is in a private/internal range
func isPrivateIP(ip net.IP) bool {
	privateRanges := []string{
		"10.0.0.0/8",     // RFC1918
		"172.16.0.0/12",  // RFC1918
		"192.168.0.0/16", // RFC1918
		"127.0.0.0/8",    // Loopback
		"169.254.0.0/16", // Link-local
		"224.0.0.0/4",    // Multicast
		"240.0.0.0/4",    // Reserved
		"fc00::/7",       // IPv6 unique local
		"fe80::/10",      // IPv6 link-local
		"::1/128",        // IPv6 loopback
	}

	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}

	return false
}
