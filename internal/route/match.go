package route

import (
	"strings"

	"devlens/internal/model"

	"github.com/agnivade/levenshtein"
)

// Flatten lists routes depth first.
func Flatten(routes []model.Route) []model.Route {
	var out []model.Route
	for _, r := range routes {
		out = append(out, r)
		out = append(out, Flatten(r.Children)...)
	}
	return out
}

// Match finds the route whose pattern matches a concrete path and returns
// the values of its parameters in declared order.
func Match(routes []model.Route, path string) (model.Route, []string, bool) {
	want := splitPath(path)
	for _, r := range Flatten(routes) {
		pat := splitPath(r.Pattern())
		if len(pat) != len(want) {
			continue
		}
		byName := map[string]string{}
		ok := true
		for i, seg := range pat {
			if strings.HasPrefix(seg, ":") {
				byName[seg[1:]] = want[i]
				continue
			}
			if seg != want[i] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		values := make([]string, len(r.Params))
		for i, p := range r.Params {
			values[i] = byName[p]
		}
		return r, values, true
	}
	return model.Route{}, nil, false
}

// Find returns the route with the given pattern.
func Find(routes []model.Route, pattern string) (model.Route, bool) {
	for _, r := range Flatten(routes) {
		if r.Pattern() == pattern {
			return r, true
		}
	}
	return model.Route{}, false
}

// Suggest returns the pattern closest to path by edit distance.
func Suggest(routes []model.Route, path string) (string, bool) {
	best, bestDist := "", -1
	for _, r := range Flatten(routes) {
		d := levenshtein.ComputeDistance(path, r.Pattern())
		if bestDist < 0 || d < bestDist {
			best, bestDist = r.Pattern(), d
		}
	}
	return best, bestDist >= 0
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
