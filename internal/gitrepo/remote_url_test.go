package gitrepo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/gitrepo"
)

func TestParseRemoteURL(testInstance *testing.T) {
	testCases := []struct {
		name           string
		remote         string
		expectedResult gitrepo.RemoteURL
		expectError    bool
	}{
		{
			name:   "https_remote_with_git_suffix",
			remote: "https://github.com/org1/repoA.git",
			expectedResult: gitrepo.RemoteURL{
				Protocol:   gitrepo.RemoteProtocolHTTPS,
				Host:       "github.com",
				Owner:      "org1",
				Repository: "repoA",
			},
		},
		{
			name:   "ssh_shorthand_remote",
			remote: "git@github.com:org1/repoA.git",
			expectedResult: gitrepo.RemoteURL{
				Protocol:   gitrepo.RemoteProtocolSSH,
				Host:       "github.com",
				Owner:      "org1",
				Repository: "repoA",
			},
		},
		{
			name:   "ssh_protocol_remote",
			remote: "ssh://git@github.com/org1/repoA.git",
			expectedResult: gitrepo.RemoteURL{
				Protocol:   gitrepo.RemoteProtocolSSH,
				Host:       "github.com",
				Owner:      "org1",
				Repository: "repoA",
			},
		},
		{name: "empty_remote", remote: "   ", expectError: true},
		{name: "unsupported_protocol", remote: "ftp://github.com/org1/repoA", expectError: true},
		{name: "https_missing_repository", remote: "https://github.com/org1", expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			parsedRemote, parseError := gitrepo.ParseRemoteURL(testCase.remote)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedResult, parsedRemote)
		})
	}
}

func TestFormatRemoteURLRoundTrip(testInstance *testing.T) {
	testCases := []struct {
		name           string
		remote         gitrepo.RemoteURL
		expectedOutput string
	}{
		{
			name: "https_format",
			remote: gitrepo.RemoteURL{
				Protocol:   gitrepo.RemoteProtocolHTTPS,
				Host:       "github.com",
				Owner:      "org1",
				Repository: "repoA",
			},
			expectedOutput: "https://github.com/org1/repoA.git",
		},
		{
			name: "ssh_format",
			remote: gitrepo.RemoteURL{
				Protocol:   gitrepo.RemoteProtocolSSH,
				Host:       "github.com",
				Owner:      "org1",
				Repository: "repoA",
			},
			expectedOutput: "git@github.com:org1/repoA.git",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			formattedRemote, formatError := gitrepo.FormatRemoteURL(testCase.remote)
			require.NoError(testInstance, formatError)
			require.Equal(testInstance, testCase.expectedOutput, formattedRemote)

			parsedRemote, parseError := gitrepo.ParseRemoteURL(formattedRemote)
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.remote, parsedRemote)
		})
	}
}
