package membership

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/miekg/dns"
	"github.com/ruteri/envelope-registry/interfaces"
)

// DNS reads membership from TXT records published under a zone:
//
//	_validators.<zone>  one or more TXT records, each a list of hex addresses
//	_committee.<zone>   same format
//
// Addresses may be separated by spaces or commas.
type DNS struct {
	zone   string
	server string
	client *dns.Client
	log    *slog.Logger
}

// NewDNS queries server (host:port) for records under zone.
func NewDNS(zone, server string, log *slog.Logger) *DNS {
	return &DNS{
		zone:   dns.Fqdn(zone),
		server: server,
		client: new(dns.Client),
		log:    log,
	}
}

func (d *DNS) Validators(ctx context.Context) ([]interfaces.Address, error) {
	return d.lookup(ctx, "_validators."+d.zone)
}

func (d *DNS) Committee(ctx context.Context) ([]interfaces.Address, error) {
	return d.lookup(ctx, "_committee."+d.zone)
}

func (d *DNS) lookup(ctx context.Context, name string) ([]interfaces.Address, error) {
	m := new(dns.Msg)
	m.SetQuestion(name, dns.TypeTXT)
	m.RecursionDesired = true

	in, _, err := d.client.ExchangeContext(ctx, m, d.server)
	if err != nil {
		return nil, fmt.Errorf("dns query %s: %w", name, err)
	}
	if in.Rcode == dns.RcodeNameError {
		return nil, nil
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns query %s: %s", name, dns.RcodeToString[in.Rcode])
	}

	var txt []string
	for _, answer := range in.Answer {
		if rr, ok := answer.(*dns.TXT); ok {
			txt = append(txt, rr.Txt...)
		}
	}

	addrs, err := parseAddresses(txt)
	if err != nil {
		return nil, fmt.Errorf("dns record %s: %w", name, err)
	}

	d.log.Debug("Resolved membership from DNS", slog.String("name", name), slog.Int("members", len(addrs)))
	return addrs, nil
}

// parseAddresses splits TXT strings into unique addresses, preserving first-seen order.
func parseAddresses(txt []string) ([]interfaces.Address, error) {
	var res []interfaces.Address
	seen := make(map[interfaces.Address]bool)
	for _, s := range txt {
		for _, field := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
			addr, err := interfaces.NewAddressFromHex(field)
			if err != nil {
				return nil, err
			}
			if !seen[addr] {
				seen[addr] = true
				res = append(res, addr)
			}
		}
	}
	return res, nil
}
