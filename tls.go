package trialkit

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"
)

// TLSConfig describes the certificates used to serve datasets over HTTPS or
// to talk to TLS enabled Kafka brokers.
type TLSConfig struct {
	// CertificatePath contains the path to the certificate (.crt or .pem file)
	CertificatePath string `json:"certificate" help:"Path to certificate file."`
	// CertificateKeyPath contains the path to the certificate key (.key file)
	CertificateKeyPath string `json:"key" help:"Path to certificate key file."`
	// CACertPath is the path to a CA certificate (.crt or .pem file)
	CACertPath string `json:"ca-certificate" help:"Path to CA certificate file."`
	// SkipVerify disables verification of server certificates.
	SkipVerify bool `json:"skip-verify" help:"Disables verification of server certificates."`
	// EnableClientVerification enables verification of client TLS certificates (Mutual TLS)
	EnableClientVerification bool `json:"enable-client-verification" help:"Enable verification of client certificates."`
}

// Enabled reports whether a keypair is configured.
func (c *TLSConfig) Enabled() bool {
	return c != nil && c.CertificatePath != "" && c.CertificateKeyPath != ""
}

type keypairReloader struct {
	certMu   sync.RWMutex
	cert     *tls.Certificate
	certPath string
	keyPath  string
}

// newKeypairReloader loads the keypair and reloads it whenever the process
// receives SIGHUP until stop is closed.
func newKeypairReloader(certPath, keyPath string, log Logger, stop <-chan struct{}) (*keypairReloader, error) {
	result := &keypairReloader{
		certPath: certPath,
		keyPath:  keyPath,
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	result.cert = &cert
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGHUP)
		defer signal.Stop(c)
		for {
			select {
			case <-c:
				log.Printf("received SIGHUP, reloading TLS certificate and key from %q and %q", certPath, keyPath)
				if err := result.maybeReload(); err != nil {
					log.Printf("keeping old TLS certificate because the new one could not be loaded: %v", err)
				}
			case <-stop:
				return
			}
		}
	}()
	return result, nil
}

func (kpr *keypairReloader) maybeReload() error {
	newCert, err := tls.LoadX509KeyPair(kpr.certPath, kpr.keyPath)
	if err != nil {
		return err
	}
	kpr.certMu.Lock()
	defer kpr.certMu.Unlock()
	kpr.cert = &newCert
	return nil
}

func (kpr *keypairReloader) current() *tls.Certificate {
	kpr.certMu.RLock()
	defer kpr.certMu.RUnlock()
	return kpr.cert
}

// GetTLSConfig builds a tls.Config from c. It returns nil when no keypair
// is configured. The keypair is reloaded on SIGHUP until stop is closed; a
// nil stop reloads for the life of the process.
func GetTLSConfig(c *TLSConfig, log Logger, stop <-chan struct{}) (*tls.Config, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if log == nil {
		log = NopLogger{}
	}
	kpr, err := newKeypairReloader(c.CertificatePath, c.CertificateKeyPath, log, stop)
	if err != nil {
		return nil, errors.Wrap(err, "loading keypair")
	}
	conf := &tls.Config{
		InsecureSkipVerify: c.SkipVerify,
		MinVersion:         tls.VersionTLS12,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return kpr.current(), nil
		},
		GetClientCertificate: func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
			return kpr.current(), nil
		},
	}
	if c.CACertPath != "" {
		b, err := ioutil.ReadFile(c.CACertPath)
		if err != nil {
			return nil, errors.Wrap(err, "loading tls ca key")
		}
		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(b) {
			return nil, errors.New("error parsing CA certificate")
		}
		conf.ClientCAs = certPool
		conf.RootCAs = certPool
	}
	if c.EnableClientVerification {
		conf.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return conf, nil
}
