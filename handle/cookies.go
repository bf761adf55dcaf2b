package handle

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

type cookie struct {
	name     string
	value    string
	domain   string
	path     string
	hostOnly bool
	secure   bool
	httpOnly bool
	expires  time.Time // zero for session cookies
	seq      uint64
}

func (c *cookie) key() string {
	return c.domain + ";" + c.path + ";" + c.name
}

func (c *cookie) expired(now time.Time) bool {
	return !c.expires.IsZero() && !c.expires.After(now)
}

// cookieJar is the cookie engine of a handle. It implements
// [http.CookieJar] and reads and writes Netscape cookie files.
type cookieJar struct {
	mu      sync.Mutex
	entries map[string]*cookie
	seq     uint64
	logger  *slog.Logger
}

func newCookieJar(logger *slog.Logger) *cookieJar {
	return &cookieJar{
		entries: make(map[string]*cookie),
		logger:  logger,
	}
}

// cookies enables the cookie engine.
func (e *Easy) cookies() *cookieJar {
	if e.jar == nil {
		e.jar = newCookieJar(e.logger)
	}
	return e.jar
}

// SetCookies stores the cookies received from u.
func (j *cookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	host := canonicalHost(u.Hostname())
	now := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, hc := range cookies {
		c, ok := j.fromResponse(host, u.Path, hc, now)
		if !ok {
			j.logger.Debug("cookie rejected", "name", hc.Name, "domain", hc.Domain, "host", host)
			continue
		}
		j.store(c, now)
	}
}

func (j *cookieJar) fromResponse(host, reqPath string, hc *http.Cookie, now time.Time) (*cookie, bool) {
	c := &cookie{
		name:     hc.Name,
		value:    hc.Value,
		secure:   hc.Secure,
		httpOnly: hc.HttpOnly,
		path:     hc.Path,
	}

	domain := canonicalHost(strings.TrimPrefix(hc.Domain, "."))
	switch {
	case domain == "":
		c.domain = host
		c.hostOnly = true
	case net.ParseIP(host) != nil:
		if domain != host {
			return nil, false
		}
		c.domain = host
		c.hostOnly = true
	default:
		if ps, _ := publicsuffix.PublicSuffix(domain); ps == domain && domain != host {
			return nil, false
		}
		if !domainMatch(host, domain) {
			return nil, false
		}
		c.domain = domain
	}

	if c.path == "" || c.path[0] != '/' {
		c.path = defaultPath(reqPath)
	}

	switch {
	case hc.MaxAge < 0:
		c.expires = now
	case hc.MaxAge > 0:
		c.expires = now.Add(time.Duration(hc.MaxAge) * time.Second)
	case !hc.Expires.IsZero():
		c.expires = hc.Expires
	}

	return c, true
}

// store adds or replaces c. An already expired cookie deletes its match.
// j.mu must be held.
func (j *cookieJar) store(c *cookie, now time.Time) {
	k := c.key()
	if c.expired(now) {
		delete(j.entries, k)
		return
	}

	if old, ok := j.entries[k]; ok {
		c.seq = old.seq
	} else {
		j.seq++
		c.seq = j.seq
	}
	j.entries[k] = c
}

// Cookies returns the cookies to send to u, longest paths first.
func (j *cookieJar) Cookies(u *url.URL) []*http.Cookie {
	host := canonicalHost(u.Hostname())
	reqPath := u.Path
	if reqPath == "" {
		reqPath = "/"
	}
	secure := u.Scheme == "https"
	now := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	var selected []*cookie
	for k, c := range j.entries {
		if c.expired(now) {
			delete(j.entries, k)
			continue
		}
		if c.secure && !secure {
			continue
		}
		if c.hostOnly && host != c.domain || !c.hostOnly && !domainMatch(host, c.domain) {
			continue
		}
		if !pathMatch(reqPath, c.path) {
			continue
		}
		selected = append(selected, c)
	}

	slices.SortFunc(selected, func(a, b *cookie) int {
		if n := cmp.Compare(len(b.path), len(a.path)); n != 0 {
			return n
		}
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]*http.Cookie, 0, len(selected))
	for _, c := range selected {
		out = append(out, &http.Cookie{Name: c.name, Value: c.value})
	}

	return out
}

func canonicalHost(host string) string {
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

func domainMatch(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain) && net.ParseIP(host) == nil
}

func pathMatch(reqPath, cookiePath string) bool {
	if reqPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}

func defaultPath(reqPath string) string {
	if reqPath == "" || reqPath[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(reqPath, "/")
	if i == 0 {
		return "/"
	}
	return reqPath[:i]
}

// clear removes every cookie, or only session cookies.
func (j *cookieJar) clear(sessionOnly bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for k, c := range j.entries {
		if !sessionOnly || c.expires.IsZero() {
			delete(j.entries, k)
		}
	}
}

// /////////////////////////////////////////////////////////////////
// Cookie files

const httpOnlyPrefix = "#HttpOnly_"

// addLine parses a Set-Cookie header line or a Netscape cookie file line.
func (j *cookieJar) addLine(line string, skipSession bool) error {
	c, err := parseCookieLine(line)
	if err != nil {
		return err
	}
	if skipSession && c.expires.IsZero() {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.store(c, time.Now())

	return nil
}

func parseCookieLine(line string) (*cookie, error) {
	line = strings.TrimRight(line, "\r\n")

	if len(line) > len("Set-Cookie:") && strings.EqualFold(line[:len("Set-Cookie:")], "Set-Cookie:") {
		hc, err := http.ParseSetCookie(strings.TrimSpace(line[len("Set-Cookie:"):]))
		if err != nil {
			return nil, &Error{Err: ErrBadFunctionArgument, Detail: "cookie line", Cause: err}
		}
		if hc.Domain == "" {
			return nil, fail(ErrBadFunctionArgument, "cookie %q has no domain", hc.Name)
		}

		c := &cookie{
			name:     hc.Name,
			value:    hc.Value,
			domain:   canonicalHost(strings.TrimPrefix(hc.Domain, ".")),
			path:     hc.Path,
			secure:   hc.Secure,
			httpOnly: hc.HttpOnly,
		}
		if c.path == "" {
			c.path = "/"
		}
		switch {
		case hc.MaxAge < 0:
			c.expires = time.Unix(0, 0)
		case hc.MaxAge > 0:
			c.expires = time.Now().Add(time.Duration(hc.MaxAge) * time.Second)
		case !hc.Expires.IsZero():
			c.expires = hc.Expires
		}

		return c, nil
	}

	c := &cookie{}
	if rest, ok := strings.CutPrefix(line, httpOnlyPrefix); ok {
		line = rest
		c.httpOnly = true
	}

	fields := strings.Split(line, "\t")
	if len(fields) == 6 {
		fields = append(fields, "")
	}
	if len(fields) != 7 {
		return nil, fail(ErrBadFunctionArgument, "malformed cookie line %q", line)
	}

	c.domain = canonicalHost(strings.TrimPrefix(fields[0], "."))
	if c.domain == "" {
		return nil, fail(ErrBadFunctionArgument, "cookie line without domain")
	}
	c.hostOnly = strings.EqualFold(fields[1], "FALSE")
	c.path = fields[2]
	c.secure = strings.EqualFold(fields[3], "TRUE")

	exp, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, &Error{Err: ErrBadFunctionArgument, Detail: "cookie expiry", Cause: err}
	}
	if exp != 0 {
		c.expires = time.Unix(exp, 0)
	}

	c.name = fields[5]
	c.value = fields[6]

	return c, nil
}

// load reads a cookie file. Unparsable lines are skipped.
func (j *cookieJar) load(r io.Reader, skipSession bool) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "#") && !strings.HasPrefix(line, httpOnlyPrefix) {
			continue
		}
		if err := j.addLine(line, skipSession); err != nil {
			j.logger.Debug("skipping cookie line", "error", err)
		}
	}

	return sc.Err()
}

// loadFile reads the cookie file at path. A missing file is not an error.
func (j *cookieJar) loadFile(path string, skipSession bool) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			j.logger.Debug("cookie file does not exist", "path", path)
			return nil
		}
		return &Error{Err: ErrReadError, Detail: path, Cause: err}
	}
	defer f.Close()

	if err := j.load(f, skipSession); err != nil {
		return &Error{Err: ErrReadError, Detail: path, Cause: err}
	}

	return nil
}

// write writes every unexpired cookie in Netscape format.
func (j *cookieJar) write(w io.Writer) error {
	now := time.Now()

	j.mu.Lock()
	cookies := make([]*cookie, 0, len(j.entries))
	for _, c := range j.entries {
		if !c.expired(now) {
			cookies = append(cookies, c)
		}
	}
	j.mu.Unlock()

	slices.SortFunc(cookies, func(a, b *cookie) int { return cmp.Compare(a.seq, b.seq) })

	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "# Netscape HTTP Cookie File\n# This file was generated by easyhttp. Edit at your own risk.\n\n")

	for _, c := range cookies {
		domain := c.domain
		tailMatch := "FALSE"
		if !c.hostOnly {
			domain = "." + domain
			tailMatch = "TRUE"
		}
		if c.httpOnly {
			domain = httpOnlyPrefix + domain
		}
		var exp int64
		if !c.expires.IsZero() {
			exp = c.expires.Unix()
		}

		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			domain, tailMatch, c.path, strings.ToUpper(strconv.FormatBool(c.secure)), exp, c.name, c.value)
	}

	return bw.Flush()
}

// save writes the jar to a temp file next to path and renames it into
// place on success.
func (j *cookieJar) save(path string) error {
	file, err := os.CreateTemp(filepath.Dir(path), ".easyhttp-cookies-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	var successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			j.logger.Error("defer closing temp file", "error", err)
		}
		if !successful {
			if err := os.Remove(file.Name()); err != nil {
				j.logger.Error("failed to remove temp file", "error", err)
			}
		}
	}()

	if err := j.write(file); err != nil {
		return fmt.Errorf("writing cookies: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(file.Name(), path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	successful = true

	return nil
}

// loadCookieFiles reads cookie files added since the last transfer.
func (e *Easy) loadCookieFiles() error {
	if e.jar == nil {
		return nil
	}

	var errs []error
	for _, path := range e.opts.cookieFiles {
		if e.loaded[path] {
			continue
		}
		if err := e.jar.loadFile(path, e.opts.cookieSession); err != nil {
			errs = append(errs, err)
			continue
		}
		e.loaded[path] = true
	}

	return errors.Join(errs...)
}

// cookieCommand runs a cookie list command or adds a single cookie.
func (e *Easy) cookieCommand(cmd string) error {
	switch strings.ToUpper(strings.TrimSpace(cmd)) {
	case "ALL":
		if e.jar != nil {
			e.jar.clear(false)
		}
		return nil
	case "SESS":
		if e.jar != nil {
			e.jar.clear(true)
		}
		return nil
	case "FLUSH":
		if e.jar == nil || e.opts.cookieJar == "" {
			return nil
		}
		if err := e.jar.save(e.opts.cookieJar); err != nil {
			return &Error{Err: ErrWriteError, Detail: e.opts.cookieJar, Cause: err}
		}
		return nil
	case "RELOAD":
		clear(e.loaded)
		return e.cookies().reload(e.opts.cookieFiles, e.opts.cookieSession, e.loaded)
	}

	return e.cookies().addLine(cmd, false)
}

func (j *cookieJar) reload(paths []string, skipSession bool, loaded map[string]bool) error {
	for _, path := range paths {
		if err := j.loadFile(path, skipSession); err != nil {
			return err
		}
		loaded[path] = true
	}
	return nil
}
