package listmonk

type subscriberResult struct {
	ID     int    `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Lists  []struct {
		ID int `json:"id"`
	} `json:"lists"`
}

type queryResponse struct {
	Data struct {
		Results []subscriberResult `json:"results"`
	} `json:"data"`
}

type upsertRequest struct {
	Email   string            `json:"email"`
	Name    string            `json:"name"`
	Status  string            `json:"status"`
	Lists   []int             `json:"lists"`
	Attribs map[string]string `json:"attribs,omitempty"`
	// PreconfirmSubscriptions skips the opt-in mail; the user just paid, the
	// confirmation already happened on their phone.
	PreconfirmSubscriptions bool `json:"preconfirm_subscriptions"`
}

type listActionRequest struct {
	IDs    []int  `json:"ids"`
	Action string `json:"action"`
	Lists  []int  `json:"target_list_ids"`
}

type apiErrorResponse struct {
	Message string `json:"message"`
}
