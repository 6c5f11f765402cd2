package validator

import "regexp"

// blockedCommands is the fixed command blocklist. Matching is
// case-insensitive against the leading token of each pipeline segment.
// Both POSIX-style and PowerShell-style spellings are listed because the
// model is free to emit either.
var blockedCommands = map[string]struct{}{
	// system mutation
	"rm": {}, "del": {}, "erase": {}, "rd": {}, "rmdir": {},
	"remove-item": {}, "ri": {},
	"mv": {}, "move": {}, "move-item": {}, "mi": {},
	"cp": {}, "copy": {}, "copy-item": {}, "xcopy": {}, "robocopy": {},
	"format": {}, "mkfs": {}, "dd": {},
	// process control
	"kill": {}, "stop-process": {}, "spps": {}, "taskkill": {},
	"exec": {}, "eval": {},
	"invoke-expression": {}, "iex": {},
	"invoke-command": {}, "icm": {},
	"start-process": {}, "saps": {},
	// network egress tools
	"curl": {}, "wget": {},
	"invoke-webrequest": {}, "iwr": {},
	"invoke-restmethod": {}, "irm": {},
	"nc": {}, "ncat": {}, "netcat": {},
	"ssh": {}, "scp": {}, "sftp": {}, "ftp": {}, "telnet": {},
	// package managers
	"apt": {}, "apt-get": {}, "yum": {}, "dnf": {}, "brew": {},
	"pip": {}, "pip3": {}, "npm": {}, "npx": {}, "gem": {}, "cargo": {},
	"choco": {}, "winget": {},
	"install-module": {}, "install-package": {},
	// shell escapes
	"bash": {}, "sh": {}, "zsh": {}, "cmd": {}, "cmd.exe": {},
	"powershell": {}, "pwsh": {},
	"python": {}, "python3": {}, "perl": {}, "ruby": {}, "node": {},
	// privilege escalation
	"sudo": {}, "su": {}, "runas": {}, "doas": {},
	// environment mutation
	"export": {}, "setx": {}, "setenv": {}, "unset": {},
	"set-item": {}, "set-variable": {}, "remove-variable": {},
}

type namedPattern struct {
	name    string
	message string
	re      *regexp.Regexp
}

// blockedPatterns match the whole script. Any hit is an error.
var blockedPatterns = []namedPattern{
	{
		name:    "environment variable assignment",
		message: "blocked pattern: environment variable assignment",
		re:      regexp.MustCompile(`(?i)\$env:[a-z_][a-z0-9_]*\s*[+]?=`),
	},
	{
		name:    "command substitution",
		message: "blocked pattern: backtick or subshell command substitution",
		re:      regexp.MustCompile("`[^`\n]+`" + `|\$\(`),
	},
	{
		name:    "write to system root path",
		message: "blocked pattern: write to system root path",
		re:      regexp.MustCompile(`(?i)(>{1,2}|out-file|set-content|add-content)\s*(-\w+\s+)?['"]?([a-z]:)?[\\/](windows|system32|etc|bin|boot|usr|var|dev)\b`),
	},
	{
		name:    "recursive force delete",
		message: "blocked pattern: recursive force delete",
		re:      regexp.MustCompile(`(?i)(-recurse\b[^\n;|]*-force\b|-force\b[^\n;|]*-recurse\b|\s-rf\b|\s-fr\b)`),
	},
	{
		name:    "unbounded loop",
		message: "blocked pattern: unbounded loop",
		re:      regexp.MustCompile(`(?i)(while\s*\(\s*\$?true\s*\)|while\s+true\b|for\s*\(\s*;\s*;\s*\))`),
	},
}

// warningPatterns match the whole script. Hits are surfaced as warnings
// only and never invalidate the script.
var warningPatterns = []namedPattern{
	{
		name:    "http egress",
		message: "script references an HTTP URL",
		re:      regexp.MustCompile(`(?i)\bhttps?://`),
	},
	{
		name:    "file write",
		message: "script writes to a file",
		re:      regexp.MustCompile(`(?i)(\b(out-file|set-content|add-content|export-csv)\b|>{1,2})`),
	},
	{
		name:    "home directory access",
		message: "script accesses the home directory",
		re:      regexp.MustCompile(`(?i)(~[/\\]|\$home\b|\$env:userprofile\b|/home/|c:\\users\\)`),
	},
	{
		name:    "recursive glob",
		message: "script uses recursive traversal",
		re:      regexp.MustCompile(`(?i)(-recurse\b|\*\*)`),
	},
}
