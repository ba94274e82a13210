package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures FTP sources. Credentials embedded in the URL take
// precedence over User and Password.
type FTPOptions struct {
	User     string
	Password string
	Timeout  time.Duration
}

// FTPSource lists a directory on an FTP server and selects the files whose
// name matches the pattern. Each download uses its own connection, since a
// server connection cannot carry concurrent transfers.
type FTPSource struct {
	host     string
	dir      string
	user     string
	password string
	pattern  Pattern
	opts     FTPOptions
}

// parseFTPURL extracts host (with port) and directory from an FTP URL.
func parseFTPURL(u *url.URL) (host string, dir string, err error) {
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", eris.New("empty host in ftp url")
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	dir = u.Path
	if dir == "" {
		dir = "/"
	}
	return host, dir, nil
}

// NewFTPSource creates a source for ftp://[user[:password]@]host[:port]/dir.
func NewFTPSource(u *url.URL, pattern Pattern, opts FTPOptions) (*FTPSource, error) {
	host, dir, err := parseFTPURL(u)
	if err != nil {
		return nil, &ConfigError{Field: "location", Value: u.String(), Reason: err.Error()}
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	user, password := opts.User, opts.Password
	if user == "" {
		user, password = "anonymous", "anonymous@"
	}
	if u.User != nil {
		user = u.User.Username()
		password, _ = u.User.Password()
	}

	return &FTPSource{
		host:     host,
		dir:      dir,
		user:     user,
		password: password,
		pattern:  pattern,
		opts:     opts,
	}, nil
}

// Name implements Source.
func (s *FTPSource) Name() string {
	return "ftp://" + s.host + s.dir
}

func (s *FTPSource) dial(ctx context.Context) (*ftp.ServerConn, error) {
	zap.L().Debug("ftp: connecting", zap.String("host", s.host))

	conn, err := ftp.Dial(s.host, ftp.DialWithTimeout(s.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}
	if err := conn.Login(s.user, s.password); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "ftp login")
	}
	return conn, nil
}

// List implements Source.
func (s *FTPSource) List(ctx context.Context) ([]string, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit() //nolint:errcheck

	entries, err := conn.List(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ftp list %s", s.dir)
	}

	var keys []string
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		if s.pattern.MatchName(e.Name) {
			keys = append(keys, path.Join(s.dir, e.Name))
		}
	}
	return keys, nil
}

// ftpConnReader closes the transfer and the connection together.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "quit ftp connection")
	}
	return nil
}

// Open implements Source. The caller must close the returned reader to
// release the connection.
func (s *FTPSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := conn.Retr(key)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp retrieve %s", key)
	}
	return &ftpConnReader{resp: resp, conn: conn}, nil
}
