package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/easyhttp/builder"
	"github.com/adamwoolhether/easyhttp/config"
	"github.com/adamwoolhether/easyhttp/handle"
)

// flags holds the command line options.
type flags struct {
	verbose        bool
	include        bool
	head           bool
	location       bool
	maxRedirs      int
	request        string
	data           []string
	headers        []string
	userAgent      string
	referer        string
	user           string
	proxy          string
	socks5Hostname string
	proxyUser      string
	noProxy        string
	cookie         string
	cookieJar      string
	rangeSpec      string
	continueAt     string
	maxTime        float64
	connectTimeout float64
	limitRate      string
	maxFilesize    int64
	speedLimit     int64
	speedTime      int
	insecure       bool
	cacert         string
	capath         string
	crlfile        string
	cert           string
	key            string
	pass           string
	ciphers        string
	iface          string
	ipv4           bool
	ipv6           bool
	compressed     bool
	fail           bool
	output         string
	tls10          bool
	tls11          bool
	tls12          bool
	tls13          bool
	profile        string
	logLevel       string
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "easyhttp [flags] URL",
		Short: "Transfer a URL",
		Long: `easyhttp transfers data from or to an HTTP server, configured with
curl-style flags. Flags may be combined with a YAML profile given with
--config, in which case the flags take precedence.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var url string
			if len(args) == 1 {
				url = args[0]
			}
			return run(cmd, f, url, stdin, stdout, stderr)
		},
	}

	fs := cmd.Flags()
	fs.SortFlags = false
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Make the operation more talkative")
	fs.BoolVarP(&f.include, "include", "i", false, "Include response headers in the output")
	fs.BoolVarP(&f.head, "head", "I", false, "Show document headers only")
	fs.BoolVarP(&f.location, "location", "L", false, "Follow redirects")
	fs.IntVar(&f.maxRedirs, "max-redirs", -1, "Maximum number of redirects allowed")
	fs.StringVarP(&f.request, "request", "X", "", "Specify the request method to use")
	fs.StringArrayVarP(&f.data, "data", "d", nil, "HTTP POST data, @file reads it from a file")
	fs.StringArrayVarP(&f.headers, "header", "H", nil, "Pass custom header(s) to the server")
	fs.StringVarP(&f.userAgent, "user-agent", "A", "", "Send User-Agent <name> to the server")
	fs.StringVarP(&f.referer, "referer", "e", "", "Referrer URL, \";auto\" follows redirects")
	fs.StringVarP(&f.user, "user", "u", "", "Server user and password")
	fs.StringVarP(&f.proxy, "proxy", "x", "", "Use this proxy, [protocol://]host[:port]")
	fs.StringVar(&f.socks5Hostname, "socks5-hostname", "", "SOCKS5 proxy, resolving names through it")
	fs.StringVarP(&f.proxyUser, "proxy-user", "U", "", "Proxy user and password")
	fs.StringVar(&f.noProxy, "noproxy", "", "List of hosts which do not use the proxy")
	fs.StringVarP(&f.cookie, "cookie", "b", "", "Send cookies from string or file")
	fs.StringVarP(&f.cookieJar, "cookie-jar", "c", "", "Write cookies to <filename> after operation")
	fs.StringVarP(&f.rangeSpec, "range", "r", "", "Retrieve only the bytes within RANGE")
	fs.StringVarP(&f.continueAt, "continue-at", "C", "", "Resumed transfer offset, \"-\" uses the output file size")
	fs.Float64VarP(&f.maxTime, "max-time", "m", 0, "Maximum time in seconds allowed for the transfer")
	fs.Float64Var(&f.connectTimeout, "connect-timeout", 0, "Maximum time in seconds allowed for connection")
	fs.StringVar(&f.limitRate, "limit-rate", "", "Limit transfer speed to RATE, as in 100K or 1M")
	fs.Int64Var(&f.maxFilesize, "max-filesize", 0, "Maximum file size to download")
	fs.Int64VarP(&f.speedLimit, "speed-limit", "Y", 0, "Stop transfers slower than this, in bytes per second")
	fs.IntVarP(&f.speedTime, "speed-time", "y", 0, "Trigger speed-limit abort after this many seconds")
	fs.BoolVarP(&f.insecure, "insecure", "k", false, "Allow insecure server connections")
	fs.StringVar(&f.cacert, "cacert", "", "CA certificate to verify peer against")
	fs.StringVar(&f.capath, "capath", "", "CA directory to verify peer against")
	fs.StringVar(&f.crlfile, "crlfile", "", "Certificate revocation list file")
	fs.StringVarP(&f.cert, "cert", "E", "", "Client certificate file")
	fs.StringVar(&f.key, "key", "", "Private key file")
	fs.StringVar(&f.pass, "pass", "", "Pass phrase for the private key")
	fs.StringVar(&f.ciphers, "ciphers", "", "SSL ciphers to use")
	fs.StringVar(&f.iface, "interface", "", "Use network interface, address or host name")
	fs.BoolVarP(&f.ipv4, "ipv4", "4", false, "Resolve names to IPv4 addresses")
	fs.BoolVarP(&f.ipv6, "ipv6", "6", false, "Resolve names to IPv6 addresses")
	fs.BoolVar(&f.compressed, "compressed", false, "Request compressed response")
	fs.BoolVarP(&f.fail, "fail", "f", false, "Fail silently on HTTP errors")
	fs.StringVarP(&f.output, "output", "o", "", "Write to file instead of stdout")
	fs.BoolVar(&f.tls10, "tlsv1.0", false, "Use TLSv1.0 or greater")
	fs.BoolVar(&f.tls11, "tlsv1.1", false, "Use TLSv1.1 or greater")
	fs.BoolVar(&f.tls12, "tlsv1.2", false, "Use TLSv1.2 or greater")
	fs.BoolVar(&f.tls13, "tlsv1.3", false, "Use TLSv1.3 or greater")
	fs.StringVar(&f.profile, "config", "", "Read transfer options from a YAML profile")
	fs.StringVar(&f.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	cmd.MarkFlagsMutuallyExclusive("ipv4", "ipv6")
	cmd.MarkFlagsMutuallyExclusive("proxy", "socks5-hostname")

	return cmd
}

func run(cmd *cobra.Command, f flags, url string, stdin io.Reader, stdout, stderr io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if url == "" && f.profile == "" {
		return fmt.Errorf("no URL specified")
	}

	b := builder.NewEasy(
		builder.WithLogger(logger),
		builder.WithHandleOptions(handle.WithStdin(stdin)),
	)
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("closing handle", "error", err)
		}
	}()

	if f.profile != "" {
		p, err := config.Load(f.profile)
		if err != nil {
			return err
		}
		p.Apply(b)
	}
	if url != "" {
		b.URL(url)
	}

	if err := applyFlags(cmd, b, f); err != nil {
		return err
	}

	out, err := openOutput(f.output, f.continueAt == "-", logger)
	if err != nil {
		return err
	}
	if out != nil {
		if f.continueAt == "-" {
			b.ResumeFrom(out.offset)
		}
		b.WriteFunction(out.Write)
	} else {
		b.WriteFunction(func(data []byte) (int, error) { return stdout.Write(data) })
	}

	if f.verbose {
		b.DebugFunction(verbosePrinter(stderr))
	}

	h, err := b.Result()
	if err != nil {
		out.discard()
		return err
	}

	if err := h.Perform(cmd.Context()); err != nil {
		out.discard()
		return err
	}

	logger.Debug("transfer complete",
		"url", h.EffectiveURL(),
		"status", h.ResponseCode(),
		"downloaded", h.DownloadSize(),
		"took", h.TotalTime())

	return out.commit()
}

// applyFlags chains every flag given on the command line onto b. Flags
// left at their defaults are skipped so that a profile's settings stay.
func applyFlags(cmd *cobra.Command, b *builder.EasyBuilder, f flags) error {
	set := cmd.Flags().Changed

	if set("verbose") {
		b.Verbose(f.verbose)
	}
	if set("include") {
		b.ShowHeader(f.include)
	}
	if f.head {
		b.Nobody(true).ShowHeader(true)
	}
	if set("location") {
		b.FollowLocation(f.location)
	}
	if set("max-redirs") {
		b.MaxRedirections(f.maxRedirs)
	}

	if len(f.data) > 0 {
		data, err := readData(f.data)
		if err != nil {
			return err
		}
		b.PostFieldsCopy(data)
	}
	if f.request != "" {
		b.CustomRequest(f.request)
	}
	if len(f.headers) > 0 {
		b.HTTPHeaders(f.headers)
	}
	if set("user-agent") {
		b.UserAgent(f.userAgent)
	}
	if set("referer") {
		ref, auto := strings.CutSuffix(f.referer, ";auto")
		if auto {
			b.AutoReferer(true)
		}
		if ref != "" {
			b.Referer(ref)
		}
	}
	if set("user") {
		user, pass, _ := strings.Cut(f.user, ":")
		b.Username(user).Password(pass)
	}

	if set("proxy") {
		b.Proxy(f.proxy)
	}
	if set("socks5-hostname") {
		b.ProxyType(handle.ProxySOCKS5Hostname).Proxy(f.socks5Hostname)
	}
	if set("proxy-user") {
		user, pass, _ := strings.Cut(f.proxyUser, ":")
		b.ProxyUsername(user).ProxyPassword(pass)
	}
	if set("noproxy") {
		b.NoProxy(f.noProxy)
	}

	if set("cookie") {
		if strings.Contains(f.cookie, "=") {
			b.Cookie(f.cookie)
		} else {
			b.CookieFile(f.cookie)
		}
	}
	if set("cookie-jar") {
		b.CookieJar(f.cookieJar)
	}

	if set("range") {
		b.Range(f.rangeSpec)
	}
	if f.continueAt != "" && f.continueAt != "-" {
		from, err := strconv.ParseInt(f.continueAt, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing continue-at offset: %w", err)
		}
		b.ResumeFrom(from)
	}

	if set("max-time") {
		b.Timeout(seconds(f.maxTime))
	}
	if set("connect-timeout") {
		b.ConnectTimeout(seconds(f.connectTimeout))
	}
	if set("limit-rate") {
		rate, err := parseRate(f.limitRate)
		if err != nil {
			return err
		}
		b.MaxRecvSpeed(rate).MaxSendSpeed(rate)
	}
	if set("max-filesize") {
		b.MaxFilesize(f.maxFilesize)
	}
	if set("speed-limit") || set("speed-time") {
		limit, dur := f.speedLimit, time.Duration(f.speedTime)*time.Second
		if limit == 0 {
			limit = 1
		}
		if dur == 0 {
			dur = 30 * time.Second
		}
		b.LowSpeedLimit(limit).LowSpeedTime(dur)
	}

	if f.insecure {
		b.SSLVerifyPeer(false).SSLVerifyHost(false)
	}
	if set("cacert") {
		b.CAInfo(f.cacert)
	}
	if set("capath") {
		b.CAPath(f.capath)
	}
	if set("crlfile") {
		b.CRLFile(f.crlfile)
	}
	if set("cert") {
		// curl accepts the key pass phrase after a colon.
		cert, pass, ok := strings.Cut(f.cert, ":")
		b.SSLCert(cert)
		if ok {
			b.KeyPassword(pass)
		}
	}
	if set("key") {
		b.SSLKey(f.key)
	}
	if set("pass") {
		b.KeyPassword(f.pass)
	}
	if set("ciphers") {
		b.SSLCipherList(f.ciphers)
	}
	switch {
	case f.tls13:
		b.SSLVersion(handle.SSLVersionTLSv13)
	case f.tls12:
		b.SSLVersion(handle.SSLVersionTLSv12)
	case f.tls11:
		b.SSLVersion(handle.SSLVersionTLSv11)
	case f.tls10:
		b.SSLVersion(handle.SSLVersionTLSv10)
	}

	if set("interface") {
		b.Interface(f.iface)
	}
	switch {
	case f.ipv4:
		b.IPResolve(handle.IPResolveV4)
	case f.ipv6:
		b.IPResolve(handle.IPResolveV6)
	}
	if f.compressed {
		b.AcceptEncoding("")
	}
	if f.fail {
		b.FailOnError(true)
	}

	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// parseRate parses a byte rate with an optional K, M or G suffix.
func parseRate(s string) (int64, error) {
	mult := int64(1)
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'k', 'K':
			mult = 1 << 10
		case 'm', 'M':
			mult = 1 << 20
		case 'g', 'G':
			mult = 1 << 30
		}
		if mult > 1 {
			s = s[:n-1]
		}
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid rate %q", s)
	}

	return v * mult, nil
}

// readData joins -d arguments with "&". Arguments starting with @ name a
// file whose content is used with line breaks removed.
func readData(args []string) ([]byte, error) {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		path, ok := strings.CutPrefix(arg, "@")
		if !ok {
			parts = append(parts, arg)
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading post data: %w", err)
		}
		parts = append(parts, strings.NewReplacer("\r", "", "\n", "").Replace(string(data)))
	}

	return []byte(strings.Join(parts, "&")), nil
}
