package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/patchwaste/internal/findings"
	"github.com/dshills/patchwaste/internal/report"
)

// JUnitWriter renders findings and the budget gate as a JUnit test suite so
// CI systems can surface them as test results. HIGH and CRITICAL findings
// and a failed gate are failures; a gate that could not be evaluated is an
// error.
type JUnitWriter struct{}

type junitSuite struct {
	XMLName  xml.Name    `xml:"testsuite"`
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Errors   int         `xml:"errors,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Failure   *junitProblem `xml:"failure,omitempty"`
	Error     *junitProblem `xml:"error,omitempty"`
}

type junitProblem struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

func (j *JUnitWriter) Write(w io.Writer, r *report.Report) error {
	suite := buildJUnit(r)
	data, err := xml.MarshalIndent(suite, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}
	ew := &errWriter{w: w}
	ew.printf("%s", xml.Header)
	ew.printf("%s\n", data)
	return ew.err
}

func buildJUnit(r *report.Report) junitSuite {
	suite := junitSuite{Name: "patchwaste"}
	for _, f := range r.Findings {
		c := junitCase{Name: f.Code, ClassName: "patchwaste.findings"}
		if findings.AtLeast(f.Severity, findings.SeverityHigh) {
			c.Failure = &junitProblem{
				Message: fmt.Sprintf("[%s] %s", f.Severity, f.LikelyCause),
				Body:    strings.Join(f.Evidence, "; "),
			}
			suite.Failures++
		}
		suite.Cases = append(suite.Cases, c)
	}

	gate := junitCase{Name: "budget_gate", ClassName: "patchwaste.budget"}
	if b := r.Budget; b != nil {
		switch b.Verdict {
		case "FAIL":
			body := b.Reason
			if b.BudgetRatio != nil {
				body = fmt.Sprintf("%s (budget_ratio %.3f)", b.Reason, *b.BudgetRatio)
			}
			gate.Failure = &junitProblem{Message: "budget exceeded", Body: body}
			suite.Failures++
		case "ERROR":
			gate.Error = &junitProblem{Message: b.Error, Body: b.Reason}
			suite.Errors++
		}
	}
	suite.Cases = append(suite.Cases, gate)
	suite.Tests = len(suite.Cases)
	return suite
}
