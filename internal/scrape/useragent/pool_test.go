package useragent

import "testing"

func TestNewFallsBackToDefaultAgents(t *testing.T) {
	p := New(nil)
	if len(p.agents) != len(DefaultAgents) {
		t.Fatalf("agents = %d, want %d default agents", len(p.agents), len(DefaultAgents))
	}
}

func TestHeadersForUsesCurrentIndex(t *testing.T) {
	p := New([]string{"ua-0", "ua-1"})
	headers := p.HeadersFor("example.com")
	if headers["User-Agent"] != "ua-0" {
		t.Fatalf("User-Agent = %q, want ua-0", headers["User-Agent"])
	}
	if headers["Accept"] == "" {
		t.Fatal("expected a non-empty Accept header")
	}
}

func TestReportSuccessResetsFailureCount(t *testing.T) {
	p := New([]string{"ua-0", "ua-1"})
	p.ReportFailure("example.com")
	p.ReportFailure("example.com")
	p.ReportSuccess("example.com")

	st := p.stateFor("example.com")
	if st.failures[st.index] != 0 {
		t.Fatalf("failures[index] = %d, want 0 after success", st.failures[st.index])
	}
}

func TestReportFailureRotatesAfterThreshold(t *testing.T) {
	p := New([]string{"ua-0", "ua-1", "ua-2"})
	host := "example.com"

	for i := 0; i < maxConsecutiveFailures; i++ {
		p.ReportFailure(host)
	}

	headers := p.HeadersFor(host)
	if headers["User-Agent"] == "ua-0" {
		t.Fatal("expected rotation away from ua-0 after reaching the failure threshold")
	}
}

func TestReportFailureRotatesToLeastFailedAgent(t *testing.T) {
	p := New([]string{"ua-0", "ua-1", "ua-2"})
	host := "example.com"

	st := p.stateFor(host)
	st.failures[1] = 5
	st.failures[2] = 1

	for i := 0; i < maxConsecutiveFailures; i++ {
		p.ReportFailure(host)
	}

	if st.index != 2 {
		t.Fatalf("index = %d, want 2 (the least-failed agent)", st.index)
	}
}

func TestHostsAreTrackedIndependently(t *testing.T) {
	p := New([]string{"ua-0", "ua-1"})
	for i := 0; i < maxConsecutiveFailures; i++ {
		p.ReportFailure("a.example.com")
	}
	headers := p.HeadersFor("b.example.com")
	if headers["User-Agent"] != "ua-0" {
		t.Fatal("a fresh host must start at the first agent regardless of another host's rotation")
	}
}
