// Package ingest streams domain lists from disk into the fetch
// pipeline. Both plain one-domain-per-line files and two-column
// "rank,domain" rankings (Tranco, Majestic) are accepted.
package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/whois-api-llc/web-categorization-v2/pkg/models"
	"github.com/whois-api-llc/web-categorization-v2/pkg/utils"

	"github.com/sirupsen/logrus"
)

// Result summarizes one streamed file.
type Result struct {
	Emitted int // valid domains handed to the callback
	Skipped int // blank lines, comments, headers, invalid names
}

// StreamDomains reads path line by line and calls emit for every valid,
// normalized domain. emit returning false stops the stream early (used
// on shutdown); that is not an error. The file is never held in memory,
// so million-line rankings stream at queue speed.
func StreamDomains(path string, log *logrus.Logger, emit func(fqdn string) bool) (Result, error) {
	var res Result

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("%w: open %s: %v", utils.ErrIngest, path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			res.Skipped++
			continue
		}

		raw := domainField(line)
		fqdn := models.NormalizeDomain(raw)
		if fqdn == "" {
			// The first invalid line is usually a header; stay quiet
			// about it and only debug-log the rest.
			if lineNo > 1 {
				log.WithFields(logrus.Fields{"line": lineNo, "value": raw}).Debug("Skipping invalid domain")
			}
			res.Skipped++
			continue
		}

		if !emit(fqdn) {
			return res, nil
		}
		res.Emitted++
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("%w: read %s: %v", utils.ErrIngest, path, err)
	}
	return res, nil
}

// domainField extracts the domain column from a line. Ranked lists put
// the domain last ("1,google.com"); plain lists are the domain itself.
func domainField(line string) string {
	if i := strings.LastIndexByte(line, ','); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}
