// Package gateway is the single public entry point of this module: it
// holds a transport to the Fabric Gateway, optionally a TLS CA
// certificate, and optionally a WebSocket base URL for block events, and
// orchestrates the four gateway RPCs plus the two event streams on top of
// those transports.
//
// Grounded on nsdi23p228/tape's pkg/infra.Config/Node shape (YAML-tagged
// struct, loaded via gopkg.in/yaml.v2) and pkg/infra/client.go's TLS-aware
// gRPC dialing, generalized from tape's many-endorser load-generator
// config down to the single-gateway-endpoint shape this client needs.
package gateway

import (
	"io/ioutil"

	"github.com/hyperledger/fabric-protos-go-apiv2/gateway"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config is the client's recognized configuration, matching the spec's
// "Configuration (client)" table one field at a time.
type Config struct {
	GatewayURL string `yaml:"gateway_url"`
	WSURL      string `yaml:"ws_url"`
	TLSCACert  string `yaml:"tls_ca_cert"`

	// TransportOverride substitutes a test double for the real gRPC
	// gateway client; used by client_test.go's fake implementation.
	TransportOverride func() gateway.GatewayClient `yaml:"-"`
}

// LoadConfig reads and validates a YAML configuration file.
//
// Grounded on pkg/infra/config.go's LoadConfigFromFile/mustLoadRawConfigFromFile.
func LoadConfig(path string) (*Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading config file %s", path)
	}

	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, errors.Wrapf(err, "failed parsing config file %s", path)
	}
	if c.GatewayURL == "" {
		return nil, errors.New("gateway_url is required")
	}
	return &c, nil
}
