package data

import (
	"net/url"
	"strings"
)

const PostgresScheme = "postgres"

// A DSN for conveniently handling a URI connection string.
type DSN string

func (d DSN) String() string {
	return string(d)
}

// ToArray splits a comma separated list of connection strings.
func (d DSN) ToArray() []DSN {
	var connectionDSList []DSN
	for _, connectionURI := range strings.Split(string(d), ",") {
		dataSourceURI := DSN(strings.TrimSpace(connectionURI))
		if len(dataSourceURI) > 0 {
			connectionDSList = append(connectionDSList, dataSourceURI)
		}
	}

	return connectionDSList
}

func (d DSN) IsPostgres() bool {
	u, err := url.Parse(string(d))
	if err != nil {
		return false
	}
	return u.Scheme == PostgresScheme || u.Scheme == "postgresql"
}

func (d DSN) ToURI() (*url.URL, error) {
	return url.Parse(string(d))
}

// WithCredentials returns a copy of the DSN logging in as a different role.
func (d DSN) WithCredentials(user, password string) DSN {
	u, err := d.ToURI()
	if err != nil {
		return d
	}
	u.User = url.UserPassword(user, password)
	return DSN(u.String())
}

// WithDatabase returns a copy of the DSN pointing at another database on the same server.
func (d DSN) WithDatabase(name string) DSN {
	u, err := d.ToURI()
	if err != nil {
		return d
	}
	u.Path = "/" + strings.TrimPrefix(name, "/")
	return DSN(u.String())
}
