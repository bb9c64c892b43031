package whep

import (
	"strings"

	"github.com/mpromonet/go-whep-play/internal/domain"
)

// parseLinkICEServers extracts ice-server entries from Link headers, per
// the WHEP convention:
//
//	Link: <stun:stun.example.net>; rel="ice-server"
//	Link: <turn:turn.example.net?transport=udp>; rel="ice-server";
//	      username="user"; credential="pass"; credential-type="password"
func parseLinkICEServers(headers []string) []domain.ICEServer {
	var servers []domain.ICEServer
	for _, h := range headers {
		for _, link := range splitLinks(h) {
			target, params := parseLink(link)
			if target == "" || params["rel"] != "ice-server" {
				continue
			}
			servers = append(servers, domain.ICEServer{
				URL:        target,
				Username:   params["username"],
				Credential: params["credential"],
			})
		}
	}
	return servers
}

// splitLinks splits a combined Link header on top-level commas.
func splitLinks(header string) []string {
	var links []string
	depth := 0
	quoted := false
	start := 0
	for i := 0; i < len(header); i++ {
		switch header[i] {
		case '<':
			if !quoted {
				depth++
			}
		case '>':
			if !quoted && depth > 0 {
				depth--
			}
		case '"':
			quoted = !quoted
		case ',':
			if depth == 0 && !quoted {
				links = append(links, header[start:i])
				start = i + 1
			}
		}
	}
	return append(links, header[start:])
}

// parseLink splits one link-value into its URI target and its parameters.
func parseLink(link string) (target string, params map[string]string) {
	params = map[string]string{}
	for i, part := range strings.Split(link, ";") {
		part = strings.TrimSpace(part)
		if i == 0 {
			if strings.HasPrefix(part, "<") && strings.HasSuffix(part, ">") {
				target = part[1 : len(part)-1]
			}
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		params[key] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return target, params
}
