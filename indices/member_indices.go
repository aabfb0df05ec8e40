package indices

import (
	"context"
	"encoding/json"
	"fmt"
	"roster/client/es"
	"roster/domain"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	MemberIndexName = "members"
	SearchLimit     = 1000
)

type MemberDocument struct {
	ID       string      `json:"id"`
	OrgID    types.ID    `json:"orgId"`
	FullName string      `json:"fullName"`
	Role     domain.Role `json:"role"`
	IsActive bool        `json:"isActive"`
}

type BatchActionError map[string]error

func (e BatchActionError) Error() string {
	return fmt.Sprintf("%v", map[string]error(e))
}

// IndexMembers saves one document per member. It is a no-op when search is disabled.
func IndexMembers(ctx context.Context, members []domain.Member) error {
	if !es.Enabled() {
		return nil
	}
	errs := BatchActionError{}
	for _, m := range members {
		doc := MemberDocument{ID: m.ID, OrgID: m.OrgID, FullName: m.FullName, Role: m.Role, IsActive: m.IsActive}
		if err := es.IndexFunc(ctx, MemberIndexName, m.ID, doc); err != nil {
			errs[m.ID] = err
			logrus.WithField("memberId", m.ID).Warnf("index member: %v", err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func DeleteMemberDocument(ctx context.Context, id string) error {
	if !es.Enabled() {
		return nil
	}
	return es.DeleteDocumentByIdFunc(ctx, MemberIndexName, id)
}

// SearchMemberIDs returns the ids of org members whose name, role or id match keyword as a phrase prefix.
func SearchMemberIDs(ctx context.Context, orgID types.ID, keyword string) (map[string]bool, error) {
	query := map[string]interface{}{
		"size": SearchLimit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  keyword,
						"type":   "phrase_prefix",
						"fields": []string{"fullName", "role", "id"},
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"orgId": orgID.String()},
				},
			},
		},
	}
	result, err := es.SearchFunc(ctx, MemberIndexName, query)
	if err != nil {
		return nil, err
	}

	ids := map[string]bool{}
	for _, hit := range result.Hits.Hits {
		doc := MemberDocument{}
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, err
		}
		if doc.OrgID == orgID {
			ids[doc.ID] = true
		}
	}
	return ids, nil
}
