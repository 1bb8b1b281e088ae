package input

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SourceOptions configure remote source fetching.
type SourceOptions struct {
	Timeout   time.Duration
	UserAgent string
}

// Open resolves a dataset source to a reader. Plain paths open local
// files; http(s):// and ftp:// URLs are fetched. The caller closes the
// returned reader.
func Open(ctx context.Context, source string, opts SourceOptions) (io.ReadCloser, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return openHTTP(ctx, source, opts)
	case strings.HasPrefix(source, "ftp://"):
		return openFTP(ctx, source, opts)
	default:
		f, err := os.Open(source)
		if err != nil {
			return nil, eris.Wrapf(err, "input: open %s", source)
		}
		return f, nil
	}
}

func openHTTP(ctx context.Context, rawURL string, opts SourceOptions) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "input: build http request")
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	client := &http.Client{Timeout: opts.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "input: fetch %s", rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, eris.Errorf("input: fetch %s: status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

func openFTP(ctx context.Context, rawURL string, opts SourceOptions) (io.ReadCloser, error) {
	host, path, user, pass, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := ftp.Dial(host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(opts.Timeout))
	if err != nil {
		return nil, eris.Wrapf(err, "input: ftp dial %s", host)
	}

	if err := conn.Login(user, pass); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "input: ftp login")
	}

	resp, err := conn.Retr(path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "input: ftp retrieve %s", path)
	}

	zap.L().Debug("input: ftp stream opened", zap.String("host", host), zap.String("path", path))
	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// parseFTPURL extracts host (with port), path, and credentials from an
// FTP URL. Missing credentials default to anonymous.
func parseFTPURL(rawURL string) (host, path, user, pass string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "input: parse ftp url")
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" {
		return "", "", "", "", eris.New("input: empty path in ftp url")
	}

	user, pass = "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}

	return host, path, user, pass, nil
}

// ftpConnReader ties the FTP data stream to its control connection so
// closing the reader also disconnects cleanly.
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
		return eris.Wrap(respErr, "input: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "input: quit ftp connection")
	}
	return nil
}
