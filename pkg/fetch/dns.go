package fetch

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/whois-api-llc/web-categorization-v2/pkg/models"

	"github.com/sirupsen/logrus"
)

// Resolver performs bounded DNS lookups for the resolution stage and
// maps lookup failures onto coarse response codes.
type Resolver struct {
	resolver *net.Resolver
	timeout  time.Duration
	log      *logrus.Logger
}

// NewResolver creates a Resolver with a per-lookup deadline.
func NewResolver(timeout time.Duration, log *logrus.Logger) *Resolver {
	return &Resolver{
		resolver: net.DefaultResolver,
		timeout:  timeout,
		log:      log,
	}
}

// Resolve looks up address records for fqdn. The returned result always
// carries a response code; NOERROR with no addresses is possible when a
// name exists but has no A/AAAA records.
func (r *Resolver) Resolve(ctx context.Context, fqdn string) models.DNSResult {
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	addrs, err := r.resolver.LookupIPAddr(lookupCtx, fqdn)
	if err != nil {
		rcode := classifyDNSError(err)
		r.log.WithFields(logrus.Fields{"fqdn": fqdn, "rcode": rcode}).Debugf("DNS lookup failed: %v", err)
		return models.DNSResult{Rcode: rcode}
	}

	result := models.DNSResult{Rcode: models.RcodeNoError}
	for _, addr := range addrs {
		if v4 := addr.IP.To4(); v4 != nil {
			result.A = append(result.A, v4.String())
		} else {
			result.AAAA = append(result.AAAA, addr.IP.String())
		}
	}

	// CNAME is informational only; a failed lookup never demotes a
	// successful address resolution.
	if cname, cerr := r.resolver.LookupCNAME(lookupCtx, fqdn); cerr == nil {
		cname = strings.TrimSuffix(cname, ".")
		if cname != fqdn {
			result.CNAME = cname
		}
	}

	return result
}

// classifyDNSError maps a lookup error onto a response code.
func classifyDNSError(err error) models.Rcode {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return models.RcodeNXDomain
		case dnsErr.IsTimeout:
			return models.RcodeTimeout
		case dnsErr.IsTemporary:
			return models.RcodeServFail
		}
		return models.RcodeError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.RcodeTimeout
	}
	return models.RcodeError
}
