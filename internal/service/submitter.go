package service

import "github.com/noah-isme/points-rewards-api/internal/models"

// submitterPriority is the lookup order for who raised a request. Department columns win over
// the legacy created_by and submitted_by columns.
var submitterPriority = []models.SubmitterField{
	models.FieldCreatedByHR,
	models.FieldCreatedByLD,
	models.FieldCreatedByPMO,
	models.FieldCreatedByTA,
	models.FieldCreatedByPM,
	models.FieldCreatedBy,
	models.FieldSubmittedBy,
}

// ResolveSubmitter returns the id of whoever raised req and the column it came from.
func ResolveSubmitter(req *models.PointsRequest) (string, models.SubmitterField, bool) {
	for _, field := range submitterPriority {
		if id := req.SubmitterValue(field); id != "" {
			return id, field, true
		}
	}
	return "", "", false
}

// UpdaterName renders the submitter column of a history row.
func UpdaterName(req *models.PointsRequest, users map[string]*models.User) string {
	id, _, ok := ResolveSubmitter(req)
	if !ok {
		return models.UnknownName
	}
	if id == req.EmployeeID {
		return models.SelfSubmitterName
	}
	if user, found := users[id]; found {
		return user.DisplayName()
	}
	return models.UnknownName
}

// submitterIDs collects every submitter id referenced by reqs for bulk user resolution.
func submitterIDs(reqs []models.PointsRequest) []string {
	ids := make([]string, 0, len(reqs))
	for i := range reqs {
		if id, _, ok := ResolveSubmitter(&reqs[i]); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
