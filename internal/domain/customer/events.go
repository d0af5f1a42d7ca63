package customer

import "strconv"

// CustomerCreationRequestedEvent is raised on user signup.
// UserID is a pointer so a missing id can be told apart from zero.
type CustomerCreationRequestedEvent struct {
	UserID     *int64 `json:"userId"`
	Name       string `json:"name"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	NationalID string `json:"nationalId"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Zipcode    string `json:"zipcode"`
	State      string `json:"state"`
}

func (CustomerCreationRequestedEvent) EventName() string { return "customer.creation_requested" }

func (e CustomerCreationRequestedEvent) PartitionKey() string {
	if e.UserID == nil {
		return ""
	}
	return strconv.FormatInt(*e.UserID, 10)
}
