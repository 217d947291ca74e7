package registry

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	http3 "github.com/quic-go/quic-go/http3"
)

// HTTP3Server serves the registry API over QUIC.
type HTTP3Server struct {
	srv   *http3.Server
	pc    net.PacketConn
	addr  string
	close func() error
}

// NewHTTP3Server binds the registry handler to a UDP address. HTTP/3
// requires a TLS config with a server certificate.
func NewHTTP3Server(reg Registry, addr string, tlsCfg *tls.Config) *HTTP3Server {
	s := &http3.Server{Addr: addr, TLSConfig: tlsCfg, Handler: NewHandler(reg)}
	return &HTTP3Server{srv: s, addr: addr}
}

// Start listens on the UDP address (":0" picks an ephemeral port) and serves
// in the background, returning the bound address.
func (s *HTTP3Server) Start() (string, error) {
	var err error

	s.pc, err = net.ListenPacket("udp", s.addr)
	if err != nil {
		return "", err
	}

	realAddr := s.pc.LocalAddr().String()
	done := make(chan struct{})

	go func() {
		_ = s.srv.Serve(s.pc)
		close(done)
	}()

	s.close = func() error {
		_ = s.pc.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}

		return nil
	}

	return realAddr, nil
}

// Stop closes the listener and waits briefly for the serve loop to exit.
func (s *HTTP3Server) Stop() error {
	if s.close != nil {
		return s.close()
	}

	return nil
}

// NewClientHTTP3 creates a registry client speaking HTTP/3.
func NewClientHTTP3(baseURL string, tlsCfg *tls.Config) *Client {
	hc := &http.Client{Transport: &http3.RoundTripper{TLSClientConfig: tlsCfg}, Timeout: 30 * time.Second}
	return newClient(baseURL, lookupToken(baseURL), hc)
}

// Close releases idle connections, including QUIC state for HTTP/3 clients.
func (c *Client) Close() {
	switch tr := c.hc.Transport.(type) {
	case *http3.RoundTripper:
		_ = tr.Close()
	case *http.Transport:
		tr.CloseIdleConnections()
	}
}

// LoadServerTLS loads a certificate pair for ServeTLS or an HTTP3Server.
func LoadServerTLS(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}

// InsecureClientTLS skips certificate verification. Local testing only.
func InsecureClientTLS() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12}
}
