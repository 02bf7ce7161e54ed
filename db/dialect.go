package db

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Family groups drivers that speak the same SQL dialect.
type Family string

const (
	FamilySQLServer Family = "sqlserver"
	FamilyMySQL     Family = "mysql"
	FamilyPostgres  Family = "postgres"
	FamilySQLite    Family = "sqlite"
	FamilyGeneric   Family = "generic"
)

// Dialect knows how to turn a profile's endpoint URL, credentials and
// database name into the DSN its driver expects.
type Dialect struct {
	Driver string
	Family Family
	dsn    func(ConnectionConfig) (string, error)
}

// BuildDSN returns the driver-native connection string for c.
func (d Dialect) BuildDSN(c ConnectionConfig) (string, error) {
	return d.dsn(c)
}

var dialects = map[string]Dialect{
	"sqlserver":      {Driver: "sqlserver", Family: FamilySQLServer, dsn: sqlServerDSN},
	"mssql":          {Driver: "mssql", Family: FamilySQLServer, dsn: sqlServerDSN},
	"mysql":          {Driver: "mysql", Family: FamilyMySQL, dsn: mysqlDSN},
	"pgx":            {Driver: "pgx", Family: FamilyPostgres, dsn: postgresDSN},
	"postgres":       {Driver: "postgres", Family: FamilyPostgres, dsn: postgresDSN},
	"sqlite3":        {Driver: "sqlite3", Family: FamilySQLite, dsn: sqliteDSN},
	SQLiteDriverName: {Driver: SQLiteDriverName, Family: FamilySQLite, dsn: sqliteDSN},
	"sqlite":         {Driver: "sqlite", Family: FamilySQLite, dsn: sqliteDSN},
}

// DialectFor returns the dialect registered for driver, or a generic one
// that passes the URL through with the database appended.
func DialectFor(driver string) Dialect {
	if d, ok := dialects[driver]; ok {
		return d
	}
	return Dialect{Driver: driver, Family: FamilyGeneric, dsn: genericDSN}
}

// sqlServerDSN accepts sqlserver:// URLs (optionally in their jdbc: form with
// ;key=value properties) and ADO style "server=...;port=..." strings.
func sqlServerDSN(c ConnectionConfig) (string, error) {
	raw := strings.TrimPrefix(c.URL, "jdbc:")
	if !strings.Contains(raw, "://") {
		return adoDSN(raw, c), nil
	}

	base, props, _ := strings.Cut(raw, ";")
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid sqlserver url: %w", err)
	}

	q := u.Query()
	for _, kv := range strings.Split(props, ";") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		q.Set(k, v)
	}
	if name := q.Get("databaseName"); name != "" {
		q.Del("databaseName")
		q.Set("database", name)
	}
	if c.Database != "" {
		q.Set("database", c.Database)
	}
	if c.User != "" {
		u.User = userInfo(c.User, c.Password)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func adoDSN(raw string, c ConnectionConfig) string {
	parts := []string{strings.TrimRight(raw, ";")}
	if c.User != "" {
		parts = append(parts, "user id="+c.User, "password="+c.Password)
	}
	if c.Database != "" {
		parts = append(parts, "database="+c.Database)
	}
	return strings.Join(parts, ";")
}

// mysqlDSN accepts mysql:// URLs, native go-sql-driver DSNs and bare
// host[:port] endpoints.
func mysqlDSN(c ConnectionConfig) (string, error) {
	raw := strings.TrimPrefix(c.URL, "jdbc:")

	var mc *mysql.Config
	switch {
	case strings.HasPrefix(raw, "mysql://"):
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid mysql url: %w", err)
		}
		mc = mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = withDefaultPort(u.Host, "3306")
		mc.DBName = strings.TrimPrefix(u.Path, "/")
		if u.User != nil {
			mc.User = u.User.Username()
			mc.Passwd, _ = u.User.Password()
		}
		for k, v := range u.Query() {
			if mc.Params == nil {
				mc.Params = make(map[string]string)
			}
			mc.Params[k] = v[0]
		}
	case strings.ContainsAny(raw, "@/("):
		parsed, err := mysql.ParseDSN(raw)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		mc = parsed
	default:
		mc = mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = withDefaultPort(raw, "3306")
	}

	if c.User != "" {
		mc.User = c.User
		mc.Passwd = c.Password
	}
	if c.Database != "" {
		mc.DBName = c.Database
	}
	return mc.FormatDSN(), nil
}

// postgresDSN accepts postgres:// URLs and keyword/value connection strings.
func postgresDSN(c ConnectionConfig) (string, error) {
	raw := strings.TrimPrefix(c.URL, "jdbc:")
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid postgres url: %w", err)
		}
		if c.User != "" {
			u.User = userInfo(c.User, c.Password)
		}
		if c.Database != "" {
			u.Path = "/" + c.Database
		}
		return u.String(), nil
	}

	var parts []string
	if raw = strings.TrimSpace(raw); raw != "" {
		parts = append(parts, raw)
	}
	if c.User != "" {
		parts = append(parts, "user="+quoteValue(c.User))
		if c.Password != "" {
			parts = append(parts, "password="+quoteValue(c.Password))
		}
	}
	if c.Database != "" {
		parts = append(parts, "dbname="+quoteValue(c.Database))
	}
	return strings.Join(parts, " "), nil
}

// sqliteDSN treats the URL as a directory (or file: prefix) and the
// database as the file inside it. Credentials are ignored.
func sqliteDSN(c ConnectionConfig) (string, error) {
	raw := strings.TrimPrefix(c.URL, "jdbc:sqlite:")
	base, query, hasQuery := strings.Cut(raw, "?")

	path := base
	switch {
	case c.Database == "" || base == ":memory:":
	case base == "":
		path = c.Database
	case strings.HasSuffix(base, ":"):
		path = base + c.Database
	default:
		path = filepath.Join(base, c.Database)
	}

	if path == "" {
		return "", fmt.Errorf("sqlite needs a url or database file")
	}
	if hasQuery {
		path += "?" + query
	}
	return path, nil
}

func genericDSN(c ConnectionConfig) (string, error) {
	if c.Database == "" {
		return c.URL, nil
	}
	if u, err := url.Parse(c.URL); err == nil && u.Scheme != "" && u.Host != "" {
		u.Path = "/" + c.Database
		return u.String(), nil
	}
	return c.URL + ";databaseName=" + c.Database, nil
}

func userInfo(user, password string) *url.Userinfo {
	if password == "" {
		return url.User(user)
	}
	return url.UserPassword(user, password)
}

func withDefaultPort(host, port string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, port)
}

func quoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
