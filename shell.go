package procstream

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// SplitCommand splits a shell command string into arguments, honoring
// quoting and escaping.
func SplitCommand(command string) ([]string, error) {
	return shellquote.Split(command)
}

// QuoteArg quotes a single value so the shell treats it as one word.
func QuoteArg(arg string) string {
	return shellquote.Join(arg)
}

// QuoteArgs quotes each argument independently.
func QuoteArgs(args []string) []string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = QuoteArg(a)
	}

	return quoted
}

// QuoteCommand quotes a whole command line so it can itself be passed as a
// single argument, e.g. to a remote shell.
func QuoteCommand(args []string) string {
	return QuoteArg(shellquote.Join(args...))
}

// SSHCommand wraps a command in an ssh invocation that runs it on a remote
// host. With escape set, each argument is quoted against the remote shell.
func SSHCommand(args []string, user, host string, escape bool) []string {
	remote := strings.Join(args, " ")
	if escape {
		remote = shellquote.Join(args...)
	}

	return []string{"ssh", user + "@" + host, remote}
}

// ScriptCommand builds a command line that pipes a script string into the
// given shell. With eval set, the result is prefixed with "eval" for use
// inside another shell.
func ScriptCommand(script, shell string, eval bool) []string {
	piped := "echo " + QuoteArg(script) + " | " + shell

	if eval {
		return []string{"eval", piped}
	}

	return []string{piped}
}
