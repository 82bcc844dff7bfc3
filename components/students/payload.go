package students

import "github.com/goliatone/go-matricula/pkg/catalog"

// Student is the lookup view of a student record.
type Student struct {
	ID             int64  `json:"id"`
	Identification string `json:"identificacion"`
	StudentType    string `json:"tipo_estudiante"`
	FirstSurname   string `json:"primer_apellido"`
	SecondSurname  string `json:"segundo_apellido"`
	Names          string `json:"nombres"`
	FullName       string `json:"nombre_completo"`
	BirthDate      string `json:"fecha_nacimiento"`
	Sex            string `json:"sexo"`
	Nationality    string `json:"nacionalidad"`
	Email          string `json:"correo"`
	Mobile         string `json:"celular"`
	HomePhone      string `json:"telefono_casa"`
	Address        string `json:"direccion_exacta"`
	ProvinceID     string `json:"provincia"`
	CantonID       string `json:"canton"`
	DistrictID     string `json:"distrito"`
}

// Institution is the lookup view of an institution.
type Institution struct {
	ID   int64  `json:"id"`
	Name string `json:"nombre"`
}

// LookupResponse is the payload of the lookup endpoint.
type LookupResponse struct {
	Exists          bool         `json:"existe"`
	Student         *Student     `json:"estudiante,omitempty"`
	Institution     *Institution `json:"institucion_activa,omitempty"`
	AlreadyEnrolled bool         `json:"ya_esta_en_institucion"`
}

// LinkResponse is the payload of the link endpoint.
type LinkResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func studentView(st catalog.Student) *Student {
	return &Student{
		ID:             st.ID,
		Identification: st.Identification,
		StudentType:    st.StudentType,
		FirstSurname:   st.FirstSurname,
		SecondSurname:  st.SecondSurname,
		Names:          st.Names,
		FullName:       st.FullName(),
		BirthDate:      st.BirthDate,
		Sex:            st.Sex,
		Nationality:    st.Nationality,
		Email:          st.Email,
		Mobile:         st.Mobile,
		HomePhone:      st.HomePhone,
		Address:        st.Address,
		ProvinceID:     idString(st.ProvinceID),
		CantonID:       idString(st.CantonID),
		DistrictID:     idString(st.DistrictID),
	}
}
