// Package testmrtd generates eMRTD PKI fixtures for tests: CSCA and
// DSC entities, signed EF.SOD blobs, CRLs, LDIF documents and CMS
// Master Lists. Generation failures panic; this package is for tests
// only.
package testmrtd

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math"
	"math/big"
	"time"
)

// Entity is a certificate and private key
type Entity struct {
	Issuer      *Entity
	PrivateKey  crypto.Signer
	Certificate *x509.Certificate
	NextSN      int64
}

// NewEntity creates a new entity from options
func NewEntity(opts ...Option) *Entity {
	c := &configuration{}
	for _, opt := range opts {
		option(opt)(c)
	}
	return c.generate()
}

// NewCSCA creates a self-signed CSCA root for the country,
// CN "CSCA-<CC>"
func NewCSCA(country string, opts ...Option) *Entity {
	base := []Option{
		Authority,
		Subject(pkix.Name{
			Country:    []string{country},
			CommonName: "CSCA-" + country,
		}),
		KeyUsage(x509.KeyUsageCertSign | x509.KeyUsageCRLSign),
	}
	return NewEntity(append(base, opts...)...)
}

// IssueDSC issues a Document Signer under this CSCA
func (id *Entity) IssueDSC(opts ...Option) *Entity {
	country := "XX"
	if len(id.Certificate.Subject.Country) > 0 {
		country = id.Certificate.Subject.Country[0]
	}
	base := []Option{
		Issuer(id),
		Subject(pkix.Name{
			Country:    []string{country},
			CommonName: fmt.Sprintf("DSC-%s-%d", country, id.NextSN),
		}),
		KeyUsage(x509.KeyUsageDigitalSignature),
	}
	return NewEntity(append(base, opts...)...)
}

// Issue issues a new Entity with this one as its parent
func (id *Entity) Issue(opts ...Option) *Entity {
	opts = append(opts, Issuer(id))
	return NewEntity(opts...)
}

// Chain builds a slice of *x509.Certificate from this entity and its
// issuers
func (id *Entity) Chain() []*x509.Certificate {
	chain := []*x509.Certificate{}
	for this := id; this != nil; this = this.Issuer {
		chain = append(chain, this.Certificate)
	}
	return chain
}

// IncrementSN returns the next serial number
func (id *Entity) IncrementSN() int64 {
	defer func() {
		id.NextSN++
	}()
	return id.NextSN
}

type configuration struct {
	subject   *pkix.Name
	issuer    *Entity
	nextSN    *int64
	priv      *crypto.Signer
	isCA      bool
	notBefore *time.Time
	notAfter  *time.Time
	keyUsage  x509.KeyUsage
	useECDSA  bool
}

func (c *configuration) generate() *Entity {
	templ := &x509.Certificate{
		Subject:               c.getSubject(),
		IsCA:                  c.isCA,
		BasicConstraintsValid: true,
		NotBefore:             c.getNotBefore(),
		NotAfter:              c.getNotAfter(),
		KeyUsage:              c.keyUsage,
	}

	var (
		parent   *x509.Certificate
		thisPriv = c.getPrivateKey()
		priv     crypto.Signer
	)

	if c.issuer != nil {
		parent = c.issuer.Certificate
		templ.SerialNumber = big.NewInt(c.issuer.IncrementSN() + 1)
		priv = c.issuer.PrivateKey
	} else {
		parent = templ
		templ.SerialNumber = randSN()
		priv = thisPriv
	}

	der, err := x509.CreateCertificate(rand.Reader, templ, parent, thisPriv.Public(), priv)
	if err != nil {
		panic(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		panic(err)
	}

	return &Entity{
		Certificate: cert,
		PrivateKey:  thisPriv,
		Issuer:      c.issuer,
		NextSN:      c.getNextSN(),
	}
}

var cnCounter int64

func (c *configuration) getSubject() pkix.Name {
	if c.subject != nil {
		return *c.subject
	}
	cnCounter++
	return pkix.Name{
		Country:    []string{"UT"},
		CommonName: fmt.Sprintf("[TEST] #%d", cnCounter),
	}
}

func (c *configuration) getNextSN() int64 {
	if c.nextSN == nil {
		sn := randSN().Int64()
		c.nextSN = &sn
	}
	return *c.nextSN
}

func randSN() *big.Int {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(math.MaxInt64)))
	if err != nil {
		panic(err)
	}
	return i
}

func (c *configuration) getPrivateKey() crypto.Signer {
	if c.priv == nil {
		var signer crypto.Signer
		var err error
		if c.useECDSA {
			signer, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		} else {
			signer, err = rsa.GenerateKey(rand.Reader, 2048)
		}
		if err != nil {
			panic(err)
		}
		c.priv = &signer
	}
	return *c.priv
}

func (c *configuration) getNotBefore() time.Time {
	if c.notBefore == nil {
		return time.Now().Add(-24 * time.Hour)
	}
	return *c.notBefore
}

func (c *configuration) getNotAfter() time.Time {
	if c.notAfter == nil {
		return time.Now().Add(time.Hour * 24 * 365 * 10)
	}
	return *c.notAfter
}

// Option is an option that can be passed to NewEntity
type Option option
type option func(c *configuration)

// Subject is an Option that sets a entity's subject field
func Subject(value pkix.Name) Option {
	return func(c *configuration) {
		c.subject = &value
	}
}

// NextSerialNumber is an Option that determines the SN of the next
// issued certificate
func NextSerialNumber(value int64) Option {
	return func(c *configuration) {
		c.nextSN = &value
	}
}

// PrivateKey is an Option for setting the entity's private key
func PrivateKey(value crypto.Signer) Option {
	return func(c *configuration) {
		c.priv = &value
	}
}

// Issuer is an Option for setting the entity's issuer
func Issuer(value *Entity) Option {
	return func(c *configuration) {
		c.issuer = value
	}
}

// NotBefore is an Option for setting the entity's certificate's
// NotBefore
func NotBefore(value time.Time) Option {
	return func(c *configuration) {
		c.notBefore = &value
	}
}

// NotAfter is an Option for setting the entity's certificate's
// NotAfter
func NotAfter(value time.Time) Option {
	return func(c *configuration) {
		c.notAfter = &value
	}
}

// KeyUsage is an Option for setting the key usage
func KeyUsage(value x509.KeyUsage) Option {
	return func(c *configuration) {
		c.keyUsage = value
	}
}

// ECDSA is an Option that generates a P-256 key instead of RSA
var ECDSA Option = func(c *configuration) {
	c.useECDSA = true
}

// Authority is an Option for making an entity a certificate authority
var Authority Option = func(c *configuration) {
	c.isCA = true
}
