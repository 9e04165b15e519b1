package sqlite

var schema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		species TEXT NOT NULL DEFAULT '',
		breed TEXT NOT NULL DEFAULT '',
		age INTEGER NOT NULL DEFAULT 0 CHECK (age >= 0),
		owner_name TEXT NOT NULL,
		owner_contact TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'active' CHECK (state IN ('active', 'archived', 'purged'))
	)`,
	`CREATE TABLE IF NOT EXISTS patient_archive (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		species TEXT NOT NULL DEFAULT '',
		breed TEXT NOT NULL DEFAULT '',
		age INTEGER NOT NULL DEFAULT 0,
		owner_name TEXT NOT NULL DEFAULT '',
		owner_contact TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		archived_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS doctors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		specialization TEXT NOT NULL DEFAULT '',
		fee REAL NOT NULL DEFAULT 0 CHECK (fee >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		patient_id INTEGER NOT NULL REFERENCES patients(id),
		doctor_id INTEGER NOT NULL REFERENCES doctors(id),
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled' CHECK (status IN ('scheduled', 'completed', 'cancelled')),
		notes TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_doctor_slot
		ON appointments (doctor_id, date, time) WHERE status <> 'cancelled'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_patient_slot
		ON appointments (patient_id, date, time) WHERE status <> 'cancelled'`,
	`CREATE TABLE IF NOT EXISTS diagnoses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		appointment_id TEXT NOT NULL UNIQUE REFERENCES appointments(id),
		patient_id INTEGER NOT NULL,
		doctor_id INTEGER NOT NULL,
		diagnosis_text TEXT NOT NULL,
		diagnosis_date TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS medications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		diagnosis_id INTEGER NOT NULL REFERENCES diagnoses(id) ON DELETE CASCADE,
		medicine_name TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		price REAL NOT NULL DEFAULT 0 CHECK (price >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS medicines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		price REAL NOT NULL DEFAULT 0 CHECK (price >= 0),
		form TEXT NOT NULL DEFAULT '',
		intended_use TEXT NOT NULL DEFAULT '',
		supplier_name TEXT NOT NULL DEFAULT '',
		supplier_contact TEXT NOT NULL DEFAULT ''
	)`,
}
