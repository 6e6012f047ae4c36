package procdir

import (
	"context"
	"errors"
	"strings"
	"testing"

	ps "github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/lanbridge/internal/logging"
)

type fakeProcess struct {
	pid  int
	name string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.name }

// scripted answers commands by their joined argv.
type scripted struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (s *scripted) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	s.calls = append(s.calls, key)
	out, ok := s.outputs[key]
	if err := s.errs[key]; err != nil {
		return []byte(out), err
	}
	if !ok {
		return nil, errors.New("exit status 1")
	}
	return []byte(out), nil
}

var testIdentity = Identity{
	Executable:   "lanbridge",
	Fingerprints: []string{"lanbridge", "grimm.is/lanbridge"},
}

func newTestSystem(goos string, r Runner, opts ...Option) *System {
	base := []Option{
		WithPlatform(goos),
		WithRunner(r),
		WithIdentity(testIdentity),
		WithProcessFinder(func(int) (ps.Process, error) { return nil, errors.New("unavailable") }),
		WithKill(func(context.Context, Runner, int) error { return nil }),
	}
	return New(logging.Discard(), append(base, opts...)...)
}

func TestFindListeningOwnerUnix(t *testing.T) {
	r := &scripted{outputs: map[string]string{
		"lsof -nP -iTCP:9099 -sTCP:LISTEN -t": "4242\n",
	}}
	s := newTestSystem("darwin", r)

	pid, ok := s.FindListeningOwner(context.Background(), 9099)
	require.True(t, ok)
	assert.Equal(t, 4242, pid)
}

func TestFindListeningOwnerLinuxFallsBackToSS(t *testing.T) {
	r := &scripted{outputs: map[string]string{
		"ss -H -l -t -n -p": strings.Join([]string{
			`LISTEN 0 4096 0.0.0.0:22 0.0.0.0:* users:(("sshd",pid=900,fd=3))`,
			`LISTEN 0 4096 *:9099 *:* users:(("lanbridge",pid=4242,fd=7))`,
		}, "\n"),
	}}
	s := newTestSystem("linux", r)

	pid, ok := s.FindListeningOwner(context.Background(), 9099)
	require.True(t, ok)
	assert.Equal(t, 4242, pid)
	assert.Equal(t, []string{"lsof -nP -iTCP:9099 -sTCP:LISTEN -t", "ss -H -l -t -n -p"}, r.calls)
}

func TestFindListeningOwnerToolsMissing(t *testing.T) {
	s := newTestSystem("linux", &scripted{})

	_, ok := s.FindListeningOwner(context.Background(), 9099)
	assert.False(t, ok)
}

func TestFindListeningOwnerWindows(t *testing.T) {
	netstat := strings.Join([]string{
		"",
		"Active Connections",
		"",
		"  Proto  Local Address          Foreign Address        State           PID",
		"  TCP    127.0.0.1:50000        127.0.0.1:9099         ESTABLISHED     111",
		"  TCP    0.0.0.0:19099          0.0.0.0:0              LISTENING       222",
		"  TCP    0.0.0.0:9099           0.0.0.0:0              LISTENING       4242",
	}, "\r\n")
	r := &scripted{outputs: map[string]string{"netstat -ano -p TCP": netstat}}
	s := newTestSystem("windows", r)

	pid, ok := s.FindListeningOwner(context.Background(), 9099)
	require.True(t, ok)
	assert.Equal(t, 4242, pid)
}

func TestFindListeningOwnerWindowsIPv6(t *testing.T) {
	r := &scripted{outputs: map[string]string{
		"netstat -ano -p TCP":   "  TCP    0.0.0.0:80    0.0.0.0:0    LISTENING    4\r\n",
		"netstat -ano -p TCPv6": "  TCP    [::]:9099     [::]:0       LISTENING    777\r\n",
	}}
	s := newTestSystem("windows", r)

	pid, ok := s.FindListeningOwner(context.Background(), 9099)
	require.True(t, ok)
	assert.Equal(t, 777, pid)
}

func TestParseNetstatIgnoresNonListening(t *testing.T) {
	out := []byte("  TCP    0.0.0.0:9099    10.0.0.2:5000    TIME_WAIT    0\n" +
		"  TCP    0.0.0.0:9099    10.0.0.2:5001    ESTABLISHED  31\n")
	_, ok := parseNetstat(out, 9099)
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	r := &scripted{outputs: map[string]string{
		"ps -p 4242 -o args=": "/usr/local/bin/lanbridge run -c /etc/lanbridge/lanbridge.hcl\n",
	}}
	s := newTestSystem("linux", r, WithProcessFinder(func(pid int) (ps.Process, error) {
		return fakeProcess{pid: pid, name: "lanbridge"}, nil
	}))

	rec, ok := s.Describe(context.Background(), 4242)
	require.True(t, ok)
	assert.Equal(t, 4242, rec.PID)
	assert.Equal(t, "lanbridge", rec.Executable)
	assert.Equal(t, "/usr/local/bin/lanbridge run -c /etc/lanbridge/lanbridge.hcl", rec.CommandLine)
	assert.True(t, s.IsLikelySelf(rec))
}

func TestDescribeGoneProcess(t *testing.T) {
	s := newTestSystem("linux", &scripted{}, WithProcessFinder(func(int) (ps.Process, error) {
		return nil, nil
	}))

	_, ok := s.Describe(context.Background(), 4242)
	assert.False(t, ok)
}

func TestDescribeWithoutProcessTable(t *testing.T) {
	r := &scripted{outputs: map[string]string{
		"wmic process where processid=77 get CommandLine /format:list": "\r\n\r\nCommandLine=\"C:\\Tools\\lanbridge.exe\" run\r\n\r\n",
	}}
	s := newTestSystem("windows", r)

	rec, ok := s.Describe(context.Background(), 77)
	require.True(t, ok)
	assert.Equal(t, "lanbridge.exe", rec.Executable)
	assert.Equal(t, `"C:\Tools\lanbridge.exe" run`, rec.CommandLine)
	assert.True(t, s.IsLikelySelf(rec))
}

func TestDescribeNothingKnown(t *testing.T) {
	s := newTestSystem("linux", &scripted{})

	_, ok := s.Describe(context.Background(), 4242)
	assert.False(t, ok)
}

func TestIdentityMatches(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"same binary", Record{Executable: "lanbridge", CommandLine: "./lanbridge run"}, true},
		{"windows suffix", Record{Executable: "LanBridge.EXE", CommandLine: `C:\lanbridge.exe`}, true},
		{"module path", Record{Executable: "lanbridge", CommandLine: "/tmp/go-build/grimm.is/lanbridge/exe"}, true},
		{"other program", Record{Executable: "java", CommandLine: "java -jar server.jar"}, false},
		{"same name, no fingerprint", Record{Executable: "lanbridge", CommandLine: "/opt/x/y"}, false},
		{"fingerprint, other binary", Record{Executable: "python3", CommandLine: "python3 lanbridge.py"}, false},
		{"empty", Record{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, testIdentity.Matches(tt.rec))
		})
	}
}

func TestIdentityMatchesTruncatedComm(t *testing.T) {
	id := Identity{Executable: "lanbridge-server-x86", Fingerprints: []string{"lanbridge"}}
	rec := Record{Executable: "lanbridge-serve", CommandLine: "/usr/bin/lanbridge-server-x86 run"}
	assert.True(t, id.Matches(rec))
}

func TestTerminate(t *testing.T) {
	var killed []int
	s := newTestSystem("linux", &scripted{}, WithKill(func(_ context.Context, _ Runner, pid int) error {
		killed = append(killed, pid)
		return nil
	}))

	assert.True(t, s.Terminate(context.Background(), 4242))
	assert.Equal(t, []int{4242}, killed)
}

func TestTerminateFailure(t *testing.T) {
	s := newTestSystem("linux", &scripted{}, WithKill(func(context.Context, Runner, int) error {
		return errors.New("operation not permitted")
	}))

	assert.False(t, s.Terminate(context.Background(), 4242))
}

func TestTerminateRefusesSelf(t *testing.T) {
	called := false
	s := newTestSystem("linux", &scripted{}, WithKill(func(context.Context, Runner, int) error {
		called = true
		return nil
	}))

	assert.False(t, s.Terminate(context.Background(), s.selfPID))
	assert.False(t, s.Terminate(context.Background(), 0))
	assert.False(t, called)
}

func TestExecutableFromCommandLine(t *testing.T) {
	assert.Equal(t, "lanbridge", executableFromCommandLine("/usr/bin/lanbridge run"))
	assert.Equal(t, "lan bridge.exe", executableFromCommandLine(`"C:\Program Files\lan bridge.exe" run`))
	assert.Equal(t, "", executableFromCommandLine("   "))
}

func TestSelfIdentityIncludesBrandFingerprints(t *testing.T) {
	id := SelfIdentity()
	assert.NotEmpty(t, id.Executable)
	assert.Contains(t, id.Fingerprints, "lanbridge")
}
