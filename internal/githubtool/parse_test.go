package githubtool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUsername(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{
			name:   "standard status line",
			output: "github.com\n  ✓ Logged in to github.com as octocat (keyring)\n",
			want:   "octocat",
		},
		{
			name:   "trailing punctuation stripped",
			output: "Logged in to github.com as octocat.",
			want:   "octocat",
		},
		{
			name:   "not logged in",
			output: "You are not logged into any GitHub hosts.",
			want:   "",
		},
		{
			name:   "empty",
			output: "",
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseUsername(tt.output))
		})
	}
}

func TestParseLoginPrompt(t *testing.T) {
	output := `! First copy your one-time code: ABCD-1234
Open this URL to continue in your web browser: https://github.com/login/device
`
	p := ParseLoginPrompt(output)
	assert.Equal(t, "https://github.com/login/device", p.URL)
	assert.Equal(t, "ABCD-1234", p.Code)
}

func TestParseLoginPromptPartialOutput(t *testing.T) {
	p := ParseLoginPrompt("! First copy your one-time code: ")
	assert.Empty(t, p.URL)
	assert.Empty(t, p.Code)
}

func TestIsDeviceCode(t *testing.T) {
	valid := []string{"ABCD-1234", "WXYZ-9876", "abcd-efgh"}
	for _, w := range valid {
		assert.True(t, isDeviceCode(w), w)
	}
	invalid := []string{
		"one-time",          // descriptive word
		"two-factor",        // too-short halves
		"AB-12",             // too short
		"ABCDEFGH-12345678", // too long
		"ABCD_1234",         // no hyphen
		"AB.D-1234",         // non-alphanumeric half
	}
	for _, w := range invalid {
		assert.False(t, isDeviceCode(w), w)
	}
}

func TestParseRepoList(t *testing.T) {
	output := `octocat/hello-world   My first repository
octocat/spoon-knife   This repo is for demonstration purposes only.
octocat/no-description
`
	repos := ParseRepoList(output)
	require.Len(t, repos, 3)

	assert.Equal(t, "octocat/hello-world", repos[0].FullName)
	assert.Equal(t, "My first repository", repos[0].Description)
	assert.Equal(t, "https://github.com/octocat/hello-world", repos[0].URL())

	assert.Equal(t, "octocat/no-description", repos[2].FullName)
	assert.Empty(t, repos[2].Description)
}

func TestParseRepoListEmpty(t *testing.T) {
	assert.Empty(t, ParseRepoList(""))
	assert.Empty(t, ParseRepoList("\n  \n"))
}

func TestValidateRepoRef(t *testing.T) {
	for _, ref := range []string{"octocat/hello-world", "hello-world", "a/b.c"} {
		assert.NoError(t, validateRepoRef(ref), ref)
	}
	for _, ref := range []string{"", "a b", "../etc", "-flag", "a/b\nc"} {
		assert.Error(t, validateRepoRef(ref), ref)
	}
}
