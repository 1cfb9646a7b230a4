package report

import (
	"bytes"
	"testing"
	"time"
)

func testPatient() PatientInfo {
	age := 42
	return PatientInfo{
		AdmissionNo: "202608310001",
		Name:        "Ana Silva",
		Sex:         "F",
		Age:         &age,
		OriginDept:  "Emergency",
	}
}

func testOrder() OrderInfo {
	return OrderInfo{
		ID:        "8d7f1c1a-0000-0000-0000-000000000000",
		Status:    "pending",
		Notes:     "fasting sample",
		CreatedAt: time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC),
	}
}

func TestOrderSheet(t *testing.T) {
	r := NewRenderer("Central Lab", "12 Harbor St")
	pdf, err := r.OrderSheet(testPatient(), testOrder(), []ExamLine{
		{Name: "Complete Blood Count", Code: "CBC"},
		{Name: "Urinalysis", Code: "UA"},
	})
	if err != nil {
		t.Fatalf("OrderSheet: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatal("output is not a PDF document")
	}
}

func TestResultsReport(t *testing.T) {
	r := NewRenderer("Central Lab", "12 Harbor St")
	lines := []ResultLine{
		{ExamName: "CBC", FieldName: "Hemoglobin", Value: "14.2", Unit: "g/dL", ReferenceRange: "12.0-17.5", Validated: true},
		{ExamName: "CBC", FieldName: "Hematocrit", Value: "44", Unit: "%", ReferenceRange: "36-52", Validated: true},
		{ExamName: "UA", FieldName: "pH", Value: "6.1", ReferenceRange: "4.5-8.0", Validated: false},
	}
	pdf, err := r.ResultsReport(testPatient(), testOrder(), lines)
	if err != nil {
		t.Fatalf("ResultsReport: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatal("output is not a PDF document")
	}
}

func TestResultsReportEmpty(t *testing.T) {
	r := NewRenderer("Central Lab", "12 Harbor St")
	p := testPatient()
	p.Age = nil
	pdf, err := r.ResultsReport(p, testOrder(), nil)
	if err != nil {
		t.Fatalf("ResultsReport: %v", err)
	}
	if len(pdf) == 0 {
		t.Fatal("expected non-empty document")
	}
}
