package qrtokens

import "time"

// Token es la credencial de un solo uso que el paciente muestra como QR.
// No lleva scope ni médico: eso lo decide quien lo canjea.
type Token struct {
	Value     string
	PatientID string

	CreatedAt time.Time
	ExpiresAt time.Time

	UsedAt         *time.Time
	UsedByDoctorID string
}

func (t Token) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t Token) Used() bool {
	return t.UsedAt != nil
}

// Claimed es lo que devuelve un claim exitoso; alcanza para crear el grant.
type Claimed struct {
	PatientID string
	DoctorID  string
	UsedAt    time.Time
}
