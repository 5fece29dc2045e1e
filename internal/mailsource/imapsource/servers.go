package imapsource

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Common IMAP servers for popular email providers
var knownIMAPServers = map[string]string{
	"gmail.com":      "imap.gmail.com:993",
	"googlemail.com": "imap.gmail.com:993",
	"outlook.com":    "outlook.office365.com:993",
	"hotmail.com":    "outlook.office365.com:993",
	"live.com":       "outlook.office365.com:993",
	"yahoo.com":      "imap.mail.yahoo.com:993",
	"yandex.ru":      "imap.yandex.ru:993",
	"yandex.com":     "imap.yandex.com:993",
	"mail.ru":        "imap.mail.ru:993",
	"icloud.com":     "imap.mail.me.com:993",
	"me.com":         "imap.mail.me.com:993",
	"aol.com":        "imap.aol.com:993",
	"zoho.com":       "imap.zoho.com:993",
	"fastmail.com":   "imap.fastmail.com:993",
	"gmx.com":        "imap.gmx.com:993",
	"gmx.de":         "imap.gmx.net:993",
	"web.de":         "imap.web.de:993",
	"t-online.de":    "secureimap.t-online.de:993",
}

// ResolveServer determines the IMAP server for an email address, used
// when a user links an account without naming the server explicitly.
func ResolveServer(email string) (string, error) {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid email format")
	}

	domain := strings.ToLower(parts[1])

	if server, ok := knownIMAPServers[domain]; ok {
		return server, nil
	}

	// Probe common server name patterns
	for _, host := range []string{"imap." + domain, "mail." + domain, domain} {
		if probe(host, 993) {
			return host + ":993", nil
		}
	}

	// Derive from MX records as a last attempt
	if server, err := resolveViaMX(domain); err == nil {
		return server, nil
	}

	// Default fallback
	return "imap." + domain + ":993", nil
}

// probe checks whether an IMAP endpoint accepts TCP connections
func probe(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 3*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// resolveViaMX tries to determine the IMAP server from MX records
func resolveViaMX(domain string) (string, error) {
	mxRecords, err := net.LookupMX(domain)
	if err != nil || len(mxRecords) == 0 {
		return "", fmt.Errorf("no MX records found")
	}

	mxHost := strings.TrimSuffix(mxRecords[0].Host, ".")

	// mx.example.com -> imap.example.com / mail.example.com
	parts := strings.SplitN(mxHost, ".", 2)
	if len(parts) == 2 {
		for _, prefix := range []string{"imap.", "mail."} {
			host := prefix + parts[1]
			if probe(host, 993) {
				return host + ":993", nil
			}
		}
	}

	return "", fmt.Errorf("could not determine IMAP server")
}
