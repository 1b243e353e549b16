// Package provider maps email addresses to IMAP connection parameters.
package provider

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the implicit TLS IMAP port used by every known provider
const DefaultPort = 993

// CustomLabel is reported as the provider name for custom servers
const CustomLabel = "custom"

const customHelp = "Login failed. Check your email provider's IMAP settings."

// commonAuthFailures are rejection texts shared by most IMAP servers
var commonAuthFailures = []string{
	"invalid credentials",
	"authentication failed",
	"authenticationfailed",
	"authenticate failed",
	"login failed",
	"bad username or password",
}

// ConnectionParameters is either a KnownProvider or a CustomProvider
type ConnectionParameters interface {
	Addr() string
	Label() string
	HelpText() string
	// IsAuthFailure reports whether a server error message means the
	// credentials were rejected.
	IsAuthFailure(msg string) bool

	isConnectionParameters()
}

// KnownProvider is a provider from the built-in table
type KnownProvider struct {
	Domain       string
	Host         string
	Port         int
	Help         string
	AuthFailures []string
}

func (p KnownProvider) Addr() string     { return joinHostPort(p.Host, p.Port) }
func (p KnownProvider) Label() string    { return p.Domain }
func (p KnownProvider) HelpText() string { return p.Help }

func (p KnownProvider) IsAuthFailure(msg string) bool {
	return matchesAny(msg, p.AuthFailures) || matchesAny(msg, commonAuthFailures)
}

func (KnownProvider) isConnectionParameters() {}

// CustomProvider is an explicitly configured server
type CustomProvider struct {
	Host string
	Port int
}

func (p CustomProvider) Addr() string     { return joinHostPort(p.Host, p.Port) }
func (p CustomProvider) Label() string    { return CustomLabel }
func (p CustomProvider) HelpText() string { return customHelp }

func (p CustomProvider) IsAuthFailure(msg string) bool {
	return matchesAny(msg, commonAuthFailures)
}

func (CustomProvider) isConnectionParameters() {}

// Custom carries caller supplied server settings
type Custom struct {
	Host string
	Port int
}

// UnsupportedProviderError is returned for domains missing from the table
// when no custom settings were supplied
type UnsupportedProviderError struct {
	Domain string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported email provider: %s. Please use a supported email provider or configure custom IMAP settings", e.Domain)
}

// IsUnsupportedProvider reports whether err (or any error in its chain) is an UnsupportedProviderError.
func IsUnsupportedProvider(err error) bool {
	var target *UnsupportedProviderError
	return errors.As(err, &target)
}

type entry struct {
	host         string
	help         string
	authFailures []string
}

var (
	gmail = entry{
		host: "imap.gmail.com",
		help: "Login failed. Make sure you're using an App Password. " +
			"Go to Google Account → Security → App Passwords to generate one.",
		authFailures: []string{"application-specific password required", "web login required"},
	}
	outlook = entry{
		host: "outlook.office365.com",
		help: "Login failed. For Outlook, you may need to generate an app password. " +
			"Go to Account settings → Security → App passwords.",
		authFailures: []string{"authentication unsuccessful"},
	}
	yahoo = entry{
		host: "imap.mail.yahoo.com",
		help: "Login failed. For Yahoo Mail, you may need to generate an app password. " +
			"Go to Account Info → Account Security → Generate app password.",
	}
	aol = entry{
		host: "imap.aol.com",
		help: "Login failed. For AOL, you may need to generate an app password. " +
			"Go to Account Security → Generate app password.",
	}
	icloud = entry{
		host: "imap.mail.me.com",
		help: "Login failed. For iCloud, you need to generate an app-specific password. " +
			"Go to appleid.apple.com → Security → Generate Password.",
	}
	proton = entry{
		host: "imap.protonmail.ch",
		help: "Login failed. For ProtonMail, you need to set up the ProtonMail Bridge " +
			"application first and use those credentials.",
	}
	zoho = entry{
		host: "imap.zoho.com",
		help: "Login failed. Check your Zoho Mail settings to ensure IMAP access is enabled.",
	}
)

var table = map[string]entry{
	"gmail.com":      gmail,
	"outlook.com":    outlook,
	"hotmail.com":    outlook,
	"live.com":       outlook,
	"msn.com":        outlook,
	"yahoo.com":      yahoo,
	"aol.com":        aol,
	"aim.com":        aol,
	"icloud.com":     icloud,
	"me.com":         icloud,
	"mac.com":        icloud,
	"protonmail.com": proton,
	"zoho.com":       zoho,
}

// Domain returns the lower-cased domain part of an email address
func Domain(address string) string {
	at := strings.LastIndexByte(address, '@')
	return strings.ToLower(strings.TrimSpace(address[at+1:]))
}

// Resolve picks the connection parameters for address. Explicit custom
// settings always win; otherwise the domain must be in the provider table.
// It never touches the network.
func Resolve(address string, custom *Custom) (ConnectionParameters, error) {
	if custom != nil && custom.Host != "" {
		port := custom.Port
		if port == 0 {
			port = DefaultPort
		}
		return CustomProvider{Host: custom.Host, Port: port}, nil
	}

	domain := Domain(address)
	e, ok := table[domain]
	if !ok {
		return nil, &UnsupportedProviderError{Domain: domain}
	}

	return KnownProvider{
		Domain:       domain,
		Host:         e.host,
		Port:         DefaultPort,
		Help:         e.help,
		AuthFailures: e.authFailures,
	}, nil
}

// Supported reports whether the domain of address is in the provider table
func Supported(address string) bool {
	_, ok := table[Domain(address)]
	return ok
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(port))
}

func matchesAny(msg string, needles []string) bool {
	msg = strings.ToLower(msg)
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}
