package ranker

import (
	"math"
	"net/url"
	"strings"
	"time"
)

const (
	authorityOfficial   = 1.0
	authorityRumor      = 0.1
	authorityNeutral    = 0.4
	authorityUnparsable = 0.3

	freshnessUnknown = 0.1

	consensusNeutral   = 0.5
	consensusThreshold = 0.35
)

var officialSuffixes = []string{".gov", ".gov.in", ".nic.in", ".mil", ".edu", ".int"}

var officialDomains = []string{
	"who.int",
	"cdc.gov",
	"nih.gov",
	"medlineplus.gov",
	"nhs.uk",
	"mayoclinic.org",
	"redcross.org",
	"ndma.gov.in",
	"ready.gov",
	"weather.gov",
}

var rumorDomains = []string{
	"fake-news.com",
	"theonion.com",
	"infowars.com",
	"worldnewsdailyreport.com",
	"beforeitsnews.com",
}

type Authority struct {
	suffixes []string
	official map[string]bool
	rumor    map[string]bool
}

func NewAuthority(extraOfficial, extraRumor []string) *Authority {
	a := &Authority{
		suffixes: officialSuffixes,
		official: make(map[string]bool),
		rumor:    make(map[string]bool),
	}
	for _, d := range append(append([]string{}, officialDomains...), extraOfficial...) {
		a.official[strings.ToLower(d)] = true
	}
	for _, d := range append(append([]string{}, rumorDomains...), extraRumor...) {
		a.rumor[strings.ToLower(d)] = true
	}
	return a
}

// Score maps a URL to its domain authority. Subdomains inherit the
// authority of their listed parent.
func (a *Authority) Score(rawURL string) float64 {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return authorityUnparsable
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	for _, suffix := range a.suffixes {
		if strings.HasSuffix(host, suffix) {
			return authorityOfficial
		}
	}
	if matchDomain(host, a.official) {
		return authorityOfficial
	}
	if matchDomain(host, a.rumor) {
		return authorityRumor
	}
	return authorityNeutral
}

func (a *Authority) IsOfficial(rawURL string) bool {
	return a.Score(rawURL) == authorityOfficial
}

func matchDomain(host string, domains map[string]bool) bool {
	for {
		if domains[host] {
			return true
		}
		dot := strings.IndexByte(host, '.')
		if dot < 0 {
			return false
		}
		host = host[dot+1:]
	}
}

// Freshness is a non-increasing step function of age. A zero timestamp
// means the age is unknown.
func Freshness(published, now time.Time) float64 {
	if published.IsZero() {
		return freshnessUnknown
	}
	age := now.Sub(published)
	switch {
	case age <= 24*time.Hour:
		return 1.0
	case age <= 7*24*time.Hour:
		return 0.7
	case age <= 30*24*time.Hour:
		return 0.4
	case age <= 365*24*time.Hour:
		return 0.2
	default:
		return 0.05
	}
}

// Consensus returns, for each token set, the fraction of the other sets
// whose Jaccard similarity with it exceeds the agreement threshold.
func Consensus(tokenSets [][]string) []float64 {
	out := make([]float64, len(tokenSets))
	if len(tokenSets) < 2 {
		for i := range out {
			out[i] = consensusNeutral
		}
		return out
	}

	sets := make([]map[string]struct{}, len(tokenSets))
	for i, tokens := range tokenSets {
		set := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			set[t] = struct{}{}
		}
		sets[i] = set
	}

	for i := range sets {
		agree := 0
		for j := range sets {
			if i != j && jaccard(sets[i], sets[j]) > consensusThreshold {
				agree++
			}
		}
		out[i] = float64(agree) / float64(len(sets)-1)
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// FeedbackAdjustment scales the summed impact of feedback records and
// clamps it to ±cap.
func (w Weights) FeedbackAdjustment(impact float64) float64 {
	return clamp(impact*w.FeedbackPoint, -w.FeedbackCap, w.FeedbackCap)
}

// BehaviorAdjustment combines a saturating click boost with a penalty
// proportional to the bounce ratio.
func (w Weights) BehaviorAdjustment(clicks, bounces int) float64 {
	adj := 0.0
	if clicks > 0 && w.ClickSaturation > 0 {
		ratio := math.Log1p(float64(clicks)) / math.Log1p(float64(w.ClickSaturation))
		adj += w.ClickBoost * math.Min(1, ratio)
	}
	if total := clicks + bounces; total > 0 {
		adj -= w.BouncePenalty * float64(bounces) / float64(total)
	}
	return adj
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
