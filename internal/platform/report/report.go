// Package report renders requisition paperwork as PDF documents.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Renderer produces laboratory PDFs with a fixed header identifying the lab.
type Renderer struct {
	LabName    string
	LabAddress string
}

func NewRenderer(labName, labAddress string) *Renderer {
	return &Renderer{LabName: labName, LabAddress: labAddress}
}

// PatientInfo is the patient block printed on every document.
type PatientInfo struct {
	AdmissionNo string
	Name        string
	Sex         string
	Age         *int
	OriginDept  string
}

// OrderInfo describes the requisition the document belongs to.
type OrderInfo struct {
	ID        string
	Status    string
	Notes     string
	CreatedAt time.Time
}

// ExamLine is one requested exam on the order sheet.
type ExamLine struct {
	Name string
	Code string
}

// ResultLine is one result row on the results report, grouped under its exam.
type ResultLine struct {
	ExamName       string
	FieldName      string
	Value          string
	Unit           string
	ReferenceRange string
	Validated      bool
}

func (r *Renderer) newDoc(title string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 8, r.LabName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, r.LabAddress, "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, title, "", 1, "C", false, 0, "")
	pdf.Ln(2)
	return pdf
}

func (r *Renderer) patientBlock(pdf *gofpdf.Fpdf, p PatientInfo, o OrderInfo) {
	pdf.SetFont("Arial", "", 10)
	age := "-"
	if p.Age != nil {
		age = fmt.Sprintf("%d", *p.Age)
	}
	pdf.CellFormat(95, 6, "Patient: "+p.Name, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Admission no: "+p.AdmissionNo, "", 1, "L", false, 0, "")
	pdf.CellFormat(95, 6, fmt.Sprintf("Sex: %s    Age: %s", p.Sex, age), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Department: "+p.OriginDept, "", 1, "L", false, 0, "")
	pdf.CellFormat(95, 6, "Requisition: "+o.ID, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+o.CreatedAt.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	if o.Notes != "" {
		pdf.CellFormat(0, 6, "Notes: "+o.Notes, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

// OrderSheet renders the requested-exams sheet handed to the sampling staff.
func (r *Renderer) OrderSheet(p PatientInfo, o OrderInfo, exams []ExamLine) ([]byte, error) {
	pdf := r.newDoc("Exam Requisition")
	r.patientBlock(pdf, p, o)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(130, 7, "Exam", "1", 0, "L", true, 0, "")
	pdf.CellFormat(0, 7, "Code", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, e := range exams {
		pdf.CellFormat(130, 7, e.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, e.Code, "1", 1, "L", false, 0, "")
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, "Status: "+o.Status, "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render order sheet: %w", err)
	}
	return buf.Bytes(), nil
}

// ResultsReport renders the results document, one table section per exam.
func (r *Renderer) ResultsReport(p PatientInfo, o OrderInfo, lines []ResultLine) ([]byte, error) {
	pdf := r.newDoc("Laboratory Results Report")
	r.patientBlock(pdf, p, o)

	currentExam := ""
	for _, ln := range lines {
		if ln.ExamName != currentExam {
			currentExam = ln.ExamName
			pdf.Ln(2)
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 7, currentExam, "", 1, "L", false, 0, "")
			pdf.SetFont("Arial", "B", 9)
			pdf.SetFillColor(230, 230, 230)
			pdf.CellFormat(80, 6, "Parameter", "1", 0, "L", true, 0, "")
			pdf.CellFormat(50, 6, "Result", "1", 0, "L", true, 0, "")
			pdf.CellFormat(0, 6, "Reference", "1", 1, "L", true, 0, "")
			pdf.SetFont("Arial", "", 9)
		}
		value := ln.Value
		if value == "" {
			value = "-"
		}
		if ln.Unit != "" {
			value = value + " " + ln.Unit
		}
		pdf.CellFormat(80, 6, ln.FieldName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, value, "1", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, ln.ReferenceRange, "1", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, "Generated "+time.Now().Format("2006-01-02 15:04"), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render results report: %w", err)
	}
	return buf.Bytes(), nil
}
