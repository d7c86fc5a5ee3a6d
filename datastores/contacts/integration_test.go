package contacts_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/tenantkit/data"
	"github.com/pitabwire/tenantkit/datastore/codegen"
	"github.com/pitabwire/tenantkit/datastore/session"
	"github.com/pitabwire/tenantkit/datastores/contacts"
	"github.com/pitabwire/tenantkit/security"
	"github.com/pitabwire/tenantkit/tests"
)

type ContactsIntegrationSuite struct {
	tests.BaseTestSuite

	owner     uuid.UUID
	workspace uuid.UUID
}

func TestContactsIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	suite.Run(t, new(ContactsIntegrationSuite))
}

func (s *ContactsIntegrationSuite) SetupTest() {
	s.owner = uuid.New()
	s.workspace = s.CreateWorkspace(s.owner, "Contacts "+s.T().Name())
}

func (s *ContactsIntegrationSuite) create(user uuid.UUID, workspace uuid.UUID, body map[string]any) tests.Response {
	return s.Do(http.MethodPost, "/contacts", user, &workspace, body)
}

func (s *ContactsIntegrationSuite) TestGeneratedCodesAreSequential() {
	first := s.create(s.owner, s.workspace, map[string]any{"name": "Acme Corp"})
	s.Require().Equal(http.StatusCreated, first.Status, first.Body)
	s.Equal("AC-00001", first.Data()["code"])

	second := s.create(s.owner, s.workspace, map[string]any{"name": "Acme Corp"})
	s.Require().Equal(http.StatusCreated, second.Status, second.Body)
	s.Equal("AC-00002", second.Data()["code"])

	next := s.Do(http.MethodGet, "/contacts/next-code?name=Acme%20Corp", s.owner, &s.workspace, nil)
	s.Require().Equal(http.StatusOK, next.Status)
	s.Equal("AC-00003", next.Data()["code"])
}

func (s *ContactsIntegrationSuite) TestDuplicateCodeConflicts() {
	body := map[string]any{"name": "Jane Doe", "code": "JD-00042"}

	resp := s.create(s.owner, s.workspace, body)
	s.Require().Equal(http.StatusCreated, resp.Status, resp.Body)

	resp = s.create(s.owner, s.workspace, body)
	s.Equal(http.StatusConflict, resp.Status)
	s.Equal("CONFLICT_001", resp.Body["code"])
	s.Equal("DUPLICATE_CODE", resp.Body["error"])

	other := s.CreateWorkspace(s.owner, "Second")
	resp = s.create(s.owner, other, body)
	s.Equal(http.StatusCreated, resp.Status, "codes are unique per workspace only")
}

func (s *ContactsIntegrationSuite) TestRacingAllocationsMeetTheUniqueIndex() {
	binder := session.NewBinder(s.Pool)
	repo := contacts.NewRepository(codegen.NewGenerator())
	binding := session.Binding{UserID: s.owner, WorkspaceID: s.workspace, Role: security.RoleAdmin}

	newContact := func(code string) *contacts.Contact {
		return &contacts.Contact{Code: code, Name: "Zed Zulu", ContactType: contacts.TypeCustomer, IsActive: true}
	}

	err := binder.Run(s.T().Context(), binding, func(ctx context.Context, _ *session.Conn) error {
		first, err := repo.NextCode(ctx, "Zed Zulu")
		s.Require().NoError(err)
		second, err := repo.NextCode(ctx, "Zed Zulu")
		s.Require().NoError(err)
		s.Equal("ZZ-00001", first)
		s.Equal(first, second, "both callers are handed the same code")

		taken, err := repo.CodeExists(ctx, first)
		s.Require().NoError(err)
		s.False(taken)

		s.Require().NoError(repo.Create(ctx, newContact(first)))
		err = repo.Create(ctx, newContact(second))
		s.True(data.ErrorIsDuplicateKey(err), "the unique index rejects the loser: %v", err)

		taken, err = repo.CodeExists(ctx, first)
		s.Require().NoError(err)
		s.True(taken)

		var duplicate *codegen.DuplicateCodeError
		err = repo.CreateWithCode(ctx, newContact(first))
		s.Require().ErrorAs(err, &duplicate)
		s.Equal(first, duplicate.Code)

		generated := newContact("")
		s.Require().NoError(repo.CreateWithCode(ctx, generated))
		s.Equal("ZZ-00002", generated.Code)
		return nil
	})
	s.Require().NoError(err)

	list := s.Do(http.MethodGet, "/contacts?search=Zed", s.owner, &s.workspace, nil)
	s.Require().Equal(http.StatusOK, list.Status, list.Body)
	s.EqualValues(2, list.Data()["pagination"].(map[string]any)["total"])
}

func (s *ContactsIntegrationSuite) TestRowsStayInTheirWorkspace() {
	resp := s.create(s.owner, s.workspace, map[string]any{"name": "Hidden Partner"})
	s.Require().Equal(http.StatusCreated, resp.Status, resp.Body)
	id := resp.Data()["id"].(string)

	other := s.CreateWorkspace(s.owner, "Elsewhere")

	list := s.Do(http.MethodGet, "/contacts", s.owner, &other, nil)
	s.Require().Equal(http.StatusOK, list.Status)
	pagination := list.Data()["pagination"].(map[string]any)
	s.EqualValues(0, pagination["total"])

	get := s.Do(http.MethodGet, "/contacts/"+id, s.owner, &other, nil)
	s.Equal(http.StatusNotFound, get.Status)

	del := s.Do(http.MethodDelete, "/contacts/"+id, s.owner, &other, nil)
	s.Equal(http.StatusNotFound, del.Status)

	get = s.Do(http.MethodGet, "/contacts/"+id, s.owner, &s.workspace, nil)
	s.Equal(http.StatusOK, get.Status)
}

func (s *ContactsIntegrationSuite) TestAccessIsResolvedPerRequest() {
	stranger := uuid.New()
	resp := s.Do(http.MethodGet, "/contacts", stranger, &s.workspace, nil)
	s.Equal(http.StatusForbidden, resp.Status)
	s.Equal("AUTH_004", resp.Body["code"])

	viewer := uuid.New()
	s.AddMember(s.owner, s.workspace, viewer, "viewer")

	resp = s.Do(http.MethodGet, "/contacts", viewer, &s.workspace, nil)
	s.Equal(http.StatusOK, resp.Status)

	resp = s.create(viewer, s.workspace, map[string]any{"name": "Not Allowed"})
	s.Equal(http.StatusForbidden, resp.Status)
	s.Equal("AUTHZ_001", resp.Body["code"])

	resp = s.Do(http.MethodPut, "/workspaces/"+s.workspace.String()+"/users/"+viewer.String()+"/role",
		s.owner, nil, map[string]any{"role": "member"})
	s.Require().Equal(http.StatusOK, resp.Status, resp.Body)

	resp = s.create(viewer, s.workspace, map[string]any{"name": "Now Allowed"})
	s.Equal(http.StatusCreated, resp.Status, resp.Body)
}

func (s *ContactsIntegrationSuite) TestRequestsNeedAWorkspace() {
	resp := s.Do(http.MethodGet, "/contacts", s.owner, nil, nil)
	s.Equal(http.StatusBadRequest, resp.Status)

	resp = s.Do(http.MethodGet, "/contacts", uuid.Nil, &s.workspace, nil)
	s.Equal(http.StatusUnauthorized, resp.Status)
}

func (s *ContactsIntegrationSuite) TestListFiltersAndPages() {
	for _, name := range []string{"Alpha Supplies", "Beta Supplies", "Gamma Retail"} {
		resp := s.create(s.owner, s.workspace, map[string]any{"name": name, "contact_type": "supplier"})
		s.Require().Equal(http.StatusCreated, resp.Status, resp.Body)
	}

	resp := s.Do(http.MethodGet, "/contacts?search=Supplies&limit=1&sort_by=name&sort_order=asc",
		s.owner, &s.workspace, nil)
	s.Require().Equal(http.StatusOK, resp.Status, resp.Body)

	list := resp.Data()["list"].([]any)
	s.Require().Len(list, 1)
	s.Equal("Alpha Supplies", list[0].(map[string]any)["name"])

	pagination := resp.Data()["pagination"].(map[string]any)
	s.EqualValues(2, pagination["total"])
	s.EqualValues(2, pagination["total_pages"])
	s.Equal(true, pagination["has_next"])
}
