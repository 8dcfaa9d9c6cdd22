package data

// JSON:API shapes for the V3 predictions endpoint. Only the fields the
// decoder reads are declared.

type jsonAPIResponse struct {
	Data     []jsonAPIResource `json:"data"`
	Included []jsonAPIResource `json:"included"`
}

type jsonAPIResource struct {
	ID            string                `json:"id"`
	Type          string                `json:"type"`
	Attributes    resourceAttributes    `json:"attributes"`
	Relationships resourceRelationships `json:"relationships"`
}

type resourceAttributes struct {
	ArrivalTime   *string `json:"arrival_time"`
	DepartureTime *string `json:"departure_time"`
	DirectionID   *int    `json:"direction_id"`
	Status        string  `json:"status"`
	Headsign      string  `json:"headsign"`
}

type resourceRelationships struct {
	Route    *relationship `json:"route"`
	Stop     *relationship `json:"stop"`
	Trip     *relationship `json:"trip"`
	Schedule *relationship `json:"schedule"`
}

type relationship struct {
	Data *relationshipID `json:"data"`
}

type relationshipID struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}
