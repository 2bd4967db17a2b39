package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

// DefaultRelays is the fallback relay set used when a zap request does not
// declare its own relays and no RELAYS override is configured.
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://nos.lol",
	"wss://relay.nostr.band",
	"wss://nostr.wine",
	"wss://relay.primal.net",
	"wss://purplepag.es",
	"wss://offchain.pub",
	"wss://bitcoiner.social",
}

type Config struct {
	Server ServerConfig
	LNBits LNBitsConfig
	Nostr  NostrConfig
	LNURL  LNURLConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type LNBitsConfig struct {
	APIURL      string
	InvoiceKey  string
	TorProxyURL string
}

type NostrConfig struct {
	PrivateKey string
	PublicKey  string
	Relays     []string
}

type LNURLConfig struct {
	Domain string
	Name   string
}

func Load() (*Config, error) {
	var missing []string

	get := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	config := &Config{
		Server: ServerConfig{
			Port: get("SERVER_PORT"),
			Host: get("SERVER_HOST"),
		},
		LNBits: LNBitsConfig{
			APIURL:      get("LNBITS_API_URL"),
			InvoiceKey:  get("LNBITS_INVOICE_KEY"),
			TorProxyURL: os.Getenv("TOR_PROXY_URL"),
		},
		Nostr: NostrConfig{
			PrivateKey: get("NOSTR_PRIVATE_KEY"),
		},
		LNURL: LNURLConfig{
			Domain: get("LNURL_DOMAIN"),
			Name:   get("LNURL_NAME"),
		},
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	pubkey, err := nostr.GetPublicKey(config.Nostr.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid NOSTR_PRIVATE_KEY: %w", err)
	}
	config.Nostr.PublicKey = pubkey

	config.Nostr.Relays = DefaultRelays
	if raw := os.Getenv("RELAYS"); raw != "" {
		var relays []string
		for _, r := range strings.Split(raw, ",") {
			if r = strings.TrimSpace(r); r != "" {
				relays = append(relays, r)
			}
		}
		if len(relays) > 0 {
			config.Nostr.Relays = relays
		}
	}

	return config, nil
}

// UsesTor reports whether the payment backend sits behind a Tor hidden
// service and requests must be routed through the SOCKS proxy.
func (c *LNBitsConfig) UsesTor() bool {
	return strings.Contains(c.APIURL, ".onion")
}

// Address returns the Lightning Address served by this instance
func (c *LNURLConfig) Address() string {
	return fmt.Sprintf("%s@%s", c.Name, c.Domain)
}

// CallbackURL returns the invoice callback advertised in the LNURL-pay descriptor
func (c *LNURLConfig) CallbackURL() string {
	return fmt.Sprintf("https://%s/lnurl-pay/callback", c.Domain)
}
