package publisher

import (
	"github.com/go-ldap/ldap/v3"
	"github.com/go-phorce/pkd/pkd/config"
	"github.com/juju/errors"
)

// Directory is the minimal surface of an LDAP connection used by the
// publisher; tests supply a fake
type Directory interface {
	Add(req *ldap.AddRequest) error
	Close() error
}

type ldapDirectory struct {
	conn *ldap.Conn
}

// Connect dials and binds an LDAP directory from configuration
func Connect(cfg *config.DirectoryConfig) (Directory, error) {
	conn, err := ldap.DialURL(cfg.URL)
	if err != nil {
		return nil, errors.Annotatef(err, "unable to dial directory: %s", cfg.URL)
	}
	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.Password); err != nil {
			conn.Close()
			return nil, errors.Annotatef(err, "unable to bind as %s", cfg.BindDN)
		}
	}
	return &ldapDirectory{conn: conn}, nil
}

func (d *ldapDirectory) Add(req *ldap.AddRequest) error {
	return d.conn.Add(req)
}

func (d *ldapDirectory) Close() error {
	d.conn.Close()
	return nil
}
