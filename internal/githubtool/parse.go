package githubtool

import "strings"

const deviceLoginURL = "https://github.com/login/device"

// parseUsername extracts the account name from `gh auth status` output,
// which contains a line like "Logged in to github.com as octocat (...)".
func parseUsername(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "Logged in to github.com") {
			continue
		}
		fields := strings.Fields(line)
		for i, f := range fields {
			if f == "as" && i+1 < len(fields) {
				return strings.TrimRight(fields[i+1], "().,")
			}
		}
	}
	return ""
}

// ParseLoginPrompt extracts the device URL and one-time code from
// `gh auth login` output. Either field may be empty when the output does
// not (yet) contain it.
func ParseLoginPrompt(output string) LoginPrompt {
	var p LoginPrompt
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		if p.URL == "" {
			if i := strings.Index(line, deviceLoginURL); i >= 0 {
				url := line[i:]
				if j := strings.IndexFunc(url, isSpace); j >= 0 {
					url = url[:j]
				}
				p.URL = url
			}
		}

		if p.Code == "" && strings.Contains(strings.ToLower(line), "code") {
			for _, word := range strings.Fields(line) {
				if isDeviceCode(word) {
					p.Code = word
					break
				}
			}
		}
	}
	return p
}

// isDeviceCode reports whether a word looks like a GitHub one-time code:
// two alphanumeric halves of at least four characters joined by a hyphen.
// Words like "one-time" or "two-factor" are rejected by the length and
// content checks.
func isDeviceCode(word string) bool {
	if len(word) < 7 || len(word) > 12 {
		return false
	}
	left, right, ok := strings.Cut(word, "-")
	if !ok || len(left) < 4 || len(right) < 4 {
		return false
	}
	if strings.Contains(strings.ToLower(word), "time") {
		return false
	}
	return isAlphanumeric(left) && isAlphanumeric(right)
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return s != ""
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}

// ParseRepoList parses `gh repo list` output: one repository per line, the
// full name first, then whitespace, then an optional description.
func ParseRepoList(output string) []Repo {
	var repos []Repo
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		repos = append(repos, Repo{
			FullName:    fields[0],
			Description: strings.Join(fields[1:], " "),
		})
	}
	return repos
}
