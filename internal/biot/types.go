package biot

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessJwt struct {
		Token string `json:"token"`
	} `json:"accessJwt"`
}

// Organization as returned by the organization list query
type Organization struct {
	ID   string `json:"_id"`
	Name string `json:"_name"`
}

type organizationList struct {
	Data []Organization `json:"data"`
}

type templateList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type deviceTemplateResponse struct {
	Template struct {
		ID string `json:"id"`
	} `json:"template"`
}

// OwnerOrganization references an organization by id. A nil ID marshals as
// JSON null; the platform rejects the create in that case, which is the
// intended surfacing of an unknown organization name.
type OwnerOrganization struct {
	ID *string `json:"id"`
}

type entityRef struct {
	ID string `json:"id"`
}

type registrationCodeRequest struct {
	OwnerOrganization OwnerOrganization `json:"_ownerOrganization"`
	Code              string            `json:"_code"`
	TemplateID        string            `json:"_templateId"`
}

type registrationCodeResponse struct {
	ID string `json:"_id"`
}

type deviceRequest struct {
	OwnerOrganization OwnerOrganization `json:"_ownerOrganization"`
	RegistrationCode  entityRef         `json:"_registrationCode"`
	ID                string            `json:"_id"`
	Description       string            `json:"_description"`
	DeviceVersion     string            `json:"device_version"`
	TemplateID        string            `json:"_templateId"`
}

// DeviceSpec carries the device fields supplied on the command line.
type DeviceSpec struct {
	SerialNumber  string
	Description   string
	DeviceVersion string
}
