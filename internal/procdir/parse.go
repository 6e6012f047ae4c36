package procdir

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

func firstLine(out []byte) string {
	s := string(out)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// firstPID returns the first positive integer line of lsof -t output.
func firstPID(out []byte) (int, bool) {
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil || pid <= 0 {
			continue
		}
		return pid, true
	}
	return 0, false
}

// portOf returns the port of a host:port endpoint as printed by netstat or
// ss, including bracketed and unbracketed IPv6 forms.
func portOf(endpoint string) (int, bool) {
	i := strings.LastIndexByte(endpoint, ':')
	if i < 0 || i == len(endpoint)-1 {
		return 0, false
	}
	port, err := strconv.Atoi(endpoint[i+1:])
	if err != nil {
		return 0, false
	}
	return port, true
}

// parseNetstat scans `netstat -ano` output for a TCP row in the LISTENING
// state whose local endpoint has the given port.
//
//	TCP    0.0.0.0:9099    0.0.0.0:0    LISTENING    4242
func parseNetstat(out []byte, port int) (int, bool) {
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		if !strings.HasPrefix(strings.ToUpper(fields[0]), "TCP") {
			continue
		}
		if !strings.EqualFold(fields[3], "LISTENING") {
			continue
		}
		if p, ok := portOf(fields[1]); !ok || p != port {
			continue
		}
		pid, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil || pid <= 0 {
			continue
		}
		return pid, true
	}
	return 0, false
}

var ssPID = regexp.MustCompile(`pid=(\d+)`)

// parseSS scans `ss -H -l -t -n -p` output for a listener on port.
//
//	LISTEN 0 4096 *:9099 *:* users:(("lanbridge",pid=4242,fd=3))
func parseSS(out []byte, port int) (int, bool) {
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 || !strings.EqualFold(fields[0], "LISTEN") {
			continue
		}
		if p, ok := portOf(fields[3]); !ok || p != port {
			continue
		}
		m := ssPID.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		pid, err := strconv.Atoi(m[1])
		if err != nil || pid <= 0 {
			continue
		}
		return pid, true
	}
	return 0, false
}

// parseWmicValue extracts Key=Value from `wmic ... /format:list` output.
func parseWmicValue(out []byte, key string) (string, bool) {
	prefix := strings.ToLower(key) + "="
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			v := strings.TrimSpace(line[len(prefix):])
			return v, v != ""
		}
	}
	return "", false
}

// executableFromCommandLine returns the base name of argv[0], honoring a
// leading quoted path.
func executableFromCommandLine(cmdline string) string {
	cmdline = strings.TrimSpace(cmdline)
	if cmdline == "" {
		return ""
	}
	var argv0 string
	if cmdline[0] == '"' {
		if end := strings.IndexByte(cmdline[1:], '"'); end >= 0 {
			argv0 = cmdline[1 : end+1]
		} else {
			argv0 = cmdline[1:]
		}
	} else {
		argv0, _, _ = strings.Cut(cmdline, " ")
	}
	argv0 = strings.ReplaceAll(argv0, `\`, "/")
	return filepath.Base(argv0)
}
