// Package config loads the cluster description of a ledger node
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	imath "github.com/Caqil/harn-ledger/internal/math"
	"github.com/Caqil/harn-ledger/internal/security"
	"github.com/Caqil/harn-ledger/pkg/keygen"
	"github.com/Caqil/harn-ledger/pkg/logger"
)

// PassphraseEnv overrides StorePassphrase when set
const PassphraseEnv = "LEDGER_STORE_PASSPHRASE"

// ErrInvalidConfig is returned when configuration is invalid
var ErrInvalidConfig = errors.New("invalid configuration")

// KeySpec is an RSA key given by its factors. Integers are decimal strings.
type KeySpec struct {
	P string `yaml:"p"`
	Q string `yaml:"q"`
	E string `yaml:"e"`
}

// NodeSpec describes one replica
type NodeSpec struct {
	Name      string `yaml:"name"`
	KeySpec   `yaml:",inline"`
	Identity  string `yaml:"identity"`
	RandomVal string `yaml:"random_val"`
}

// RateLimitConfig configures per-client HTTP throttling
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LogConfig configures pkg/logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// TLSConfig enables HTTPS when both files are set
type TLSConfig struct {
	CertFile     string `yaml:"cert_file"`
	KeyFile      string `yaml:"key_file"`
	ClientCAFile string `yaml:"client_ca_file"`
}

// Enabled reports whether TLS is configured
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

// Config is the cluster file
type Config struct {
	Listen            string          `yaml:"listen"`
	CORSOrigins       []string        `yaml:"cors_origins"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	DataDir           string          `yaml:"data_dir"`
	StorePassphrase   string          `yaml:"store_passphrase"`
	AuditLog          string          `yaml:"audit_log"`
	RequirePrimary    bool            `yaml:"require_primary"`
	MaxFaulty         int             `yaml:"max_faulty"`
	ReconcileInterval time.Duration   `yaml:"reconcile_interval"`
	Log               LogConfig       `yaml:"log"`
	TLS               TLSConfig       `yaml:"tls"`
	PKG               KeySpec         `yaml:"pkg"`
	Officer           KeySpec         `yaml:"officer"`
	Nodes             []NodeSpec      `yaml:"nodes"`
}

// Default returns the four-replica demo cluster
func Default() *Config {
	return &Config{
		Listen:      "127.0.0.1:5000",
		CORSOrigins: []string{"*"},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		DataDir:           "",
		MaxFaulty:         1,
		ReconcileInterval: 2 * time.Second,
		Log:               LogConfig{Level: "info"},
		PKG: KeySpec{
			P: "1004162036461488639338597000466705179253226703",
			Q: "950133741151267522116252385927940618264103623",
			E: "973028207197278907211",
		},
		Officer: KeySpec{
			P: "1080954735722463992988394149602856332100628417",
			Q: "1158106283320086444890911863299879973542293243",
			E: "106506253943651610547613",
		},
		Nodes: []NodeSpec{
			{
				Name: "A",
				KeySpec: KeySpec{
					P: "1210613765735147311106936311866593978079938707",
					Q: "1247842850282035753615951347964437248190231863",
					E: "815459040813953176289801",
				},
				Identity:  "126",
				RandomVal: "621",
			},
			{
				Name: "B",
				KeySpec: KeySpec{
					P: "787435686772982288169641922308628444877260947",
					Q: "1325305233886096053310340418467385397239375379",
					E: "692450682143089563609787",
				},
				Identity:  "127",
				RandomVal: "721",
			},
			{
				Name: "C",
				KeySpec: KeySpec{
					P: "1014247300991039444864201518275018240361205111",
					Q: "904030450302158058469475048755214591704639633",
					E: "1158749422015035388438057",
				},
				Identity:  "128",
				RandomVal: "821",
			},
			{
				Name: "D",
				KeySpec: KeySpec{
					P: "1287737200891425621338551020762858710281638317",
					Q: "1330909125725073469794953234151525201084537607",
					E: "33981230465225879849295979",
				},
				Identity:  "129",
				RandomVal: "921",
			},
		},
	}
}

// Load reads a YAML file over the defaults. A nodes list in the file
// replaces the default nodes. The passphrase environment variable wins over
// the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if v := os.Getenv(PassphraseEnv); v != "" {
		cfg.StorePassphrase = v
	}

	return cfg, cfg.Validate()
}

// Marshal renders cfg as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the configuration without building keys
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%w: listen address cannot be empty", ErrInvalidConfig)
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("%w: at least one node is required", ErrInvalidConfig)
	}
	if err := security.ValidateFaultBound(c.MaxFaulty, len(c.Nodes)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("%w: reconcile interval must be positive", ErrInvalidConfig)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("%w: rate limit needs a positive rate and burst", ErrInvalidConfig)
	}
	if !logger.ValidLevel(c.Log.Level) {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("%w: tls needs both cert_file and key_file", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Nodes))
	ids := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if err := security.ValidateNodeName(n.Name); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if seen[n.Name] {
			return fmt.Errorf("%w: duplicate node %s", ErrInvalidConfig, n.Name)
		}
		seen[n.Name] = true

		if n.Identity == "" {
			return fmt.Errorf("%w: node %s has no identity", ErrInvalidConfig, n.Name)
		}
		if ids[n.Identity] {
			return fmt.Errorf("%w: duplicate identity %s", ErrInvalidConfig, n.Identity)
		}
		ids[n.Identity] = true
	}

	return nil
}

// Node is a built replica description
type Node struct {
	Key       *keygen.KeyPair
	Identity  *big.Int
	RandomVal *big.Int
}

// Cluster holds every key the node service needs
type Cluster struct {
	Nodes   []Node
	PKG     *keygen.KeyPair
	Officer *keygen.KeyPair
}

// Build parses the integers and derives the RSA keys
func (c *Config) Build() (*Cluster, error) {
	pkg, err := c.PKG.build("PKG")
	if err != nil {
		return nil, err
	}
	officer, err := c.Officer.build("officer")
	if err != nil {
		return nil, err
	}

	cluster := &Cluster{PKG: pkg, Officer: officer}
	for _, n := range c.Nodes {
		kp, err := n.KeySpec.build(n.Name)
		if err != nil {
			return nil, err
		}
		id, err := imath.ParseDecimal(n.Identity)
		if err != nil {
			return nil, fmt.Errorf("%w: node %s identity: %v", ErrInvalidConfig, n.Name, err)
		}

		var rv *big.Int
		if n.RandomVal != "" {
			if rv, err = imath.ParseDecimal(n.RandomVal); err != nil {
				return nil, fmt.Errorf("%w: node %s random_val: %v", ErrInvalidConfig, n.Name, err)
			}
		}

		cluster.Nodes = append(cluster.Nodes, Node{Key: kp, Identity: id, RandomVal: rv})
	}

	return cluster, nil
}

func (k KeySpec) build(name string) (*keygen.KeyPair, error) {
	p, err := imath.ParseDecimal(k.P)
	if err != nil {
		return nil, fmt.Errorf("%w: %s p: %v", ErrInvalidConfig, name, err)
	}
	q, err := imath.ParseDecimal(k.Q)
	if err != nil {
		return nil, fmt.Errorf("%w: %s q: %v", ErrInvalidConfig, name, err)
	}
	e, err := imath.ParseDecimal(k.E)
	if err != nil {
		return nil, fmt.Errorf("%w: %s e: %v", ErrInvalidConfig, name, err)
	}

	kp, err := keygen.NewKeyPair(name, p, q, e)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return kp, nil
}

// SpecFor renders a key pair as a node block
func SpecFor(kp *keygen.KeyPair, identity, randomVal *big.Int) NodeSpec {
	spec := NodeSpec{
		Name: kp.Name,
		KeySpec: KeySpec{
			P: kp.P.String(),
			Q: kp.Q.String(),
			E: kp.E.String(),
		},
	}
	if identity != nil {
		spec.Identity = identity.String()
	}
	if randomVal != nil {
		spec.RandomVal = randomVal.String()
	}
	return spec
}
