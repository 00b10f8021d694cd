package urlvalidation

import (
	"context"
	"errors"
	"net/netip"
	"testing"
)

func fakeDNS(records map[string]string) Option {
	return WithLookup(func(_ context.Context, host string) ([]netip.Addr, error) {
		ip, ok := records[host]
		if !ok {
			return nil, errors.New("no such host")
		}
		return []netip.Addr{netip.MustParseAddr(ip)}, nil
	})
}

func TestValidateWebhookURL(t *testing.T) {
	dns := fakeDNS(map[string]string{
		"hooks.example.com": "93.184.216.34",
		"localhost":         "127.0.0.1",
		"internal.corp":     "10.1.2.3",
		"sneaky.example":    "::ffff:192.168.1.10",
	})

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://hooks.example.com/ruby", false},
		{"http://hooks.example.com:8080/ruby", false},
		{"https://8.8.8.8/hook", false},
		{"http://localhost/webhook", true},
		{"http://internal.corp/webhook", true},
		{"http://sneaky.example/webhook", true},
		{"http://127.0.0.1/webhook", true},
		{"http://10.0.0.1/webhook", true},
		{"http://172.16.0.1/webhook", true},
		{"http://192.168.1.1/webhook", true},
		{"http://[::1]/webhook", true},
		{"http://169.254.169.254/latest/meta-data", true},
		{"http://100.64.0.1/webhook", true},
		{"http://unknown.invalid/webhook", true},
		{"ftp://hooks.example.com/file", true},
		{"file:///etc/passwd", true},
		{"hooks.example.com/webhook", true},
		{"http:///path", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateWebhookURL(tt.url, dns)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWebhookURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestAllowPrivateIPsSkipsResolution(t *testing.T) {
	failing := WithLookup(func(context.Context, string) ([]netip.Addr, error) {
		t.Fatal("lookup should not run")
		return nil, nil
	})
	if err := ValidateWebhookURL("http://127.0.0.1:9999/api", failing, AllowPrivateIPs()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateWebhookURL("gopher://127.0.0.1", AllowPrivateIPs()); err == nil {
		t.Error("scheme check must still apply")
	}
}

func TestBlocked(t *testing.T) {
	tests := map[string]bool{
		"8.8.8.8":          false,
		"1.1.1.1":          false,
		"172.32.0.0":       false,
		"2606:4700::1111":  false,
		"10.0.0.1":         true,
		"172.31.255.255":   true,
		"0.0.0.0":          true,
		"224.0.0.1":        true,
		"255.255.255.255":  true,
		"fd00::1":          true,
		"fe80::1":          true,
		"::ffff:127.0.0.1": true,
	}
	for ip, want := range tests {
		if got := blocked(netip.MustParseAddr(ip)); got != want {
			t.Errorf("blocked(%s) = %v, want %v", ip, got, want)
		}
	}
}

func TestValidateAbsolute(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://github.com/kavishka-CodXlab", false},
		{"http://localhost:5173/projects", false},
		{"  https://example.com/cv.pdf\n", false},
		{"mailto:me@example.com", false},
		{"file:///home/me/cv.pdf", false},
		{"", true},
		{"   ", true},
		{"Website", true},
		{"linkedin.com/in/someone", true},
		{"https://", true},
		{"http:", true},
		{"://missing-scheme", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateAbsolute(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAbsolute(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
