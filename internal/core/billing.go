package core

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"vetclinic/pkg/domain"
)

// InvoiceLine bills one completed appointment.
type InvoiceLine struct {
	Appointment     domain.Appointment
	PatientName     string
	DoctorName      string
	DoctorFee       decimal.Decimal
	Medications     []domain.Medication
	MedicationTotal decimal.Decimal
}

// Total is the doctor fee plus the medication total of the line.
func (l InvoiceLine) Total() decimal.Decimal {
	return l.DoctorFee.Add(l.MedicationTotal)
}

// Invoice totals a patient's completed appointments.
type Invoice struct {
	Patient     domain.Patient
	Lines       []InvoiceLine
	DoctorFees  decimal.Decimal
	Medications decimal.Decimal
	Total       decimal.Decimal
}

// ClientInvoice totals the completed appointments of every pet an owner has
// brought in, archived pets included.
type ClientInvoice struct {
	Client      domain.Client
	Patients    []domain.Patient
	Lines       []InvoiceLine
	DoctorFees  decimal.Decimal
	Medications decimal.Decimal
	Total       decimal.Decimal
}

// PatientInvoice bills every completed appointment of a patient: the
// attending doctor's current fee plus the medication prescribed under the
// appointment's diagnoses.
func (s *Service) PatientInvoice(ctx context.Context, patientID int64) (Invoice, error) {
	var inv Invoice
	err := s.read(ctx, "patient_invoice", func(view domain.TransactionView) error {
		patient, ok, err := view.FindPatient(patientID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound(domain.EntityPatient, patientID)
		}
		lines, err := billPatient(view, patient)
		if err != nil {
			return err
		}
		inv = Invoice{Patient: patient, Lines: lines}
		inv.DoctorFees, inv.Medications = sumLines(lines)
		inv.Total = inv.DoctorFees.Add(inv.Medications)
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// ClientInvoice bills an owner, identified by name and contact, for the
// completed appointments of all their pets. Lines are ordered by date and time.
func (s *Service) ClientInvoice(ctx context.Context, ownerName, ownerContact string) (ClientInvoice, error) {
	client := domain.Client{OwnerName: strings.TrimSpace(ownerName), OwnerContact: strings.TrimSpace(ownerContact)}
	if client.OwnerName == "" {
		return ClientInvoice{}, domain.ValidationError{Field: "owner_name", Message: "is required"}
	}
	var inv ClientInvoice
	err := s.read(ctx, "client_invoice", func(view domain.TransactionView) error {
		patients, err := view.ListPatients(domain.PatientFilter{Owner: &client, IncludeDeleted: true})
		if err != nil {
			return err
		}
		if len(patients) == 0 {
			return domain.NotFound(domain.EntityClient, client.OwnerName)
		}
		inv = ClientInvoice{Client: client, Patients: patients}
		for _, patient := range patients {
			lines, err := billPatient(view, patient)
			if err != nil {
				return err
			}
			inv.Lines = append(inv.Lines, lines...)
		}
		sort.SliceStable(inv.Lines, func(i, j int) bool {
			a, b := inv.Lines[i].Appointment, inv.Lines[j].Appointment
			if a.Date != b.Date {
				return a.Date < b.Date
			}
			return a.Time < b.Time
		})
		inv.DoctorFees, inv.Medications = sumLines(inv.Lines)
		inv.Total = inv.DoctorFees.Add(inv.Medications)
		return nil
	})
	if err != nil {
		return ClientInvoice{}, err
	}
	return inv, nil
}

func billPatient(view domain.TransactionView, patient domain.Patient) ([]InvoiceLine, error) {
	appts, err := view.ListAppointments(domain.AppointmentFilter{PatientID: patient.ID, Status: domain.StatusCompleted})
	if err != nil {
		return nil, err
	}
	lines := make([]InvoiceLine, 0, len(appts))
	for _, appt := range appts {
		line, err := invoiceLine(view, appt)
		if err != nil {
			return nil, err
		}
		line.PatientName = patient.Name
		lines = append(lines, line)
	}
	return lines, nil
}

func sumLines(lines []InvoiceLine) (fees, medications decimal.Decimal) {
	fees, medications = decimal.Zero, decimal.Zero
	for _, line := range lines {
		fees = fees.Add(line.DoctorFee)
		medications = medications.Add(line.MedicationTotal)
	}
	return fees, medications
}

func invoiceLine(view domain.TransactionView, appt domain.Appointment) (InvoiceLine, error) {
	line := InvoiceLine{Appointment: appt, DoctorFee: decimal.Zero}
	doctor, ok, err := view.FindDoctor(appt.DoctorID)
	if err != nil {
		return InvoiceLine{}, err
	}
	if ok {
		line.DoctorName = doctor.Name
		line.DoctorFee = doctor.Fee
	}
	diagnoses, err := view.ListDiagnoses(appt.ID)
	if err != nil {
		return InvoiceLine{}, err
	}
	for _, diag := range diagnoses {
		meds, err := view.ListMedications(diag.ID)
		if err != nil {
			return InvoiceLine{}, err
		}
		line.Medications = append(line.Medications, meds...)
	}
	line.MedicationTotal = domain.MedicationTotal(line.Medications)
	return line, nil
}
