package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS onboarding_steps (
    id INTEGER PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    route TEXT NOT NULL DEFAULT '',
    xp_reward INTEGER NOT NULL DEFAULT 0,
    estimated_minutes INTEGER NOT NULL DEFAULT 0,
    is_optional BOOLEAN DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS onboarding_progress (
    student_id TEXT NOT NULL REFERENCES students(id),
    step_id INTEGER NOT NULL REFERENCES onboarding_steps(id),
    status TEXT NOT NULL DEFAULT 'locked',
    completed_at DATETIME,
    xp_awarded INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (student_id, step_id)
);
`

const defaultSteps = `
INSERT OR IGNORE INTO onboarding_steps (id, title, description, route, xp_reward, estimated_minutes) VALUES
    (1, 'Document Upload', 'Upload Aadhar, Marksheets, and Certificates', '/documents', 50, 10),
    (2, 'Fee Payment', 'Pay Tuition and Hostel Fees', '/payment', 100, 5),
    (3, 'Course Registration', 'Select Electives and Specializations', '/acad/register', 75, 15),
    (4, 'Hostel Allocation', 'Choose Room and Roommates', '/hostel', 80, 20),
    (5, 'Timetable Setup', 'View and Sync Timetable', '/timetable', 40, 5),
    (6, 'LMS Onboarding', 'Setup Moodle Account', '/lms', 60, 10),
    (7, 'Mentor Matching', 'Connect with Faculty Mentor', '/mentor', 70, 15),
    (8, 'ID Card Generation', 'Upload Photo for Digital ID', '/id-card', 30, 5),
    (9, 'Compliance Training', 'Anti-Ragging & Safety Quiz', '/compliance', 90, 20),
    (10, 'All Done!', 'Celebration & Certificate', '/completion', 100, 1);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return err
	}

	_, err = db.Exec(defaultSteps)
	return err
}
