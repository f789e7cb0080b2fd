package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/veomenu/veomenu/internal/model"
)

func TestCreateInstanceGrantsOwnership(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "owner@example.com")
	h := env.instanceHandler()

	req := asUser(jsonRequest(t, "POST", "/api/instances", map[string]string{
		"name": "Tasca do Rui",
		"city": "Lisboa",
	}), u.ID, 1)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["message"] != "Instance created successfully" {
		t.Errorf("message = %q, want created message", body["message"])
	}
	inst, ok := body["instance"].(map[string]any)
	if !ok {
		t.Fatal("expected instance object in response")
	}
	id, _ := inst["id"].(string)
	if id == "" {
		t.Fatal("expected instance id")
	}
	if slug, _ := inst["slug"].(string); slug == "" {
		t.Error("expected a generated slug")
	}

	role, err := env.members.GetRole(id, u.ID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if role != model.RoleOwner {
		t.Errorf("creator role = %q, want %q", role, model.RoleOwner)
	}
}

func TestGetInstanceNonMemberForbidden(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	outsider := env.createUser(t, "outsider@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.instanceHandler()

	req := asUser(httptest.NewRequest("GET", "/api/instances/"+inst.ID, nil), outsider.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	wantError(t, rec, http.StatusForbidden, "You do not have access to this instance")
}

func TestGetInstanceUnknownID(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "owner@example.com")
	h := env.instanceHandler()

	id := uuid.NewString()
	req := asUser(httptest.NewRequest("GET", "/api/instances/"+id, nil), u.ID, 1)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	wantError(t, rec, http.StatusNotFound, "Instance not found")
}

func TestUpdateInstanceStaffForbidden(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	staff := env.createUser(t, "staff@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	env.addMember(t, inst.ID, staff.ID, model.RoleStaff)
	h := env.instanceHandler()

	req := asUser(jsonRequest(t, "PUT", "/api/instances/"+inst.ID, map[string]string{
		"name": "Renamed",
	}), staff.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	wantError(t, rec, http.StatusForbidden, "You do not have permission to update this instance")
}

func TestUpdateInstancePartial(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.instanceHandler()

	// Only the city is sent; the name must survive.
	req := asUser(jsonRequest(t, "PUT", "/api/instances/"+inst.ID, map[string]string{
		"city": "Porto",
	}), owner.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	updated, _ := env.instances.GetByID(inst.ID)
	if updated.Name != "Tasca do Rui" {
		t.Errorf("name = %q, want unchanged", updated.Name)
	}
	if updated.City != "Porto" {
		t.Errorf("city = %q, want %q", updated.City, "Porto")
	}
}

func TestDeleteInstanceAdminForbidden(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	admin := env.createUser(t, "admin@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	env.addMember(t, inst.ID, admin.ID, model.RoleAdmin)
	h := env.instanceHandler()

	req := asUser(httptest.NewRequest("DELETE", "/api/instances/"+inst.ID, nil), admin.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	wantError(t, rec, http.StatusForbidden, "Only the owner can delete this instance")
}

func TestDeleteInstanceByOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.instanceHandler()

	req := asUser(httptest.NewRequest("DELETE", "/api/instances/"+inst.ID, nil), owner.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got, _ := env.instances.GetByID(inst.ID); got != nil {
		t.Error("expected instance to be gone")
	}
}

func TestInviteMember(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	bob := env.createUser(t, "bob@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.instanceHandler()

	req := asUser(jsonRequest(t, "POST", "/api/instances/"+inst.ID+"/invite-member", map[string]string{
		"email": "Bob@Example.com",
		"role":  model.RoleManager,
	}), owner.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.InviteMember(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if msg := decodeBody(t, rec)["message"]; msg != "User bob@example.com has been added as manager" {
		t.Errorf("message = %q, want added message", msg)
	}
	role, _ := env.members.GetRole(inst.ID, bob.ID)
	if role != model.RoleManager {
		t.Errorf("role = %q, want %q", role, model.RoleManager)
	}
}

func TestInviteMemberUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.instanceHandler()

	req := asUser(jsonRequest(t, "POST", "/api/instances/"+inst.ID+"/invite-member", map[string]string{
		"email": "ghost@example.com",
		"role":  model.RoleStaff,
	}), owner.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.InviteMember(rec, req)

	wantError(t, rec, http.StatusBadRequest, "No user found with this email. They must register first.")
}

func TestInviteMemberOwnerRoleRejected(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	env.createUser(t, "bob@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.instanceHandler()

	req := asUser(jsonRequest(t, "POST", "/api/instances/"+inst.ID+"/invite-member", map[string]string{
		"email": "bob@example.com",
		"role":  model.RoleOwner,
	}), owner.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.InviteMember(rec, req)

	wantError(t, rec, http.StatusBadRequest, "Role must be admin, manager, or staff.")
}

func TestInviteMemberAlreadyMember(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	bob := env.createUser(t, "bob@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	env.addMember(t, inst.ID, bob.ID, model.RoleStaff)
	h := env.instanceHandler()

	req := asUser(jsonRequest(t, "POST", "/api/instances/"+inst.ID+"/invite-member", map[string]string{
		"email": "bob@example.com",
		"role":  model.RoleManager,
	}), owner.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.InviteMember(rec, req)

	wantError(t, rec, http.StatusBadRequest, "This user is already a member of this instance.")
}

func TestInviteMemberReactivatesRemoved(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	bob := env.createUser(t, "bob@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	env.addMember(t, inst.ID, bob.ID, model.RoleStaff)
	if _, err := env.members.Remove(inst.ID, bob.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	h := env.instanceHandler()

	req := asUser(jsonRequest(t, "POST", "/api/instances/"+inst.ID+"/invite-member", map[string]string{
		"email": "bob@example.com",
		"role":  model.RoleAdmin,
	}), owner.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.InviteMember(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	role, _ := env.members.GetRole(inst.ID, bob.ID)
	if role != model.RoleAdmin {
		t.Errorf("role after rejoin = %q, want %q", role, model.RoleAdmin)
	}
}

func TestInviteMemberManagerForbidden(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	manager := env.createUser(t, "manager@example.com")
	env.createUser(t, "bob@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	env.addMember(t, inst.ID, manager.ID, model.RoleManager)
	h := env.instanceHandler()

	req := asUser(jsonRequest(t, "POST", "/api/instances/"+inst.ID+"/invite-member", map[string]string{
		"email": "bob@example.com",
		"role":  model.RoleStaff,
	}), manager.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.InviteMember(rec, req)

	wantError(t, rec, http.StatusForbidden, "Only owners and admins can invite members")
}

func TestRemoveMemberOwnerRejected(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.instanceHandler()

	req := asUser(jsonRequest(t, "DELETE", "/api/instances/"+inst.ID+"/remove-member", map[string]int64{
		"user_id": owner.ID,
	}), owner.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.RemoveMember(rec, req)

	wantError(t, rec, http.StatusBadRequest, "Cannot remove the owner")
}

func TestRemoveMember(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	bob := env.createUser(t, "bob@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	env.addMember(t, inst.ID, bob.ID, model.RoleStaff)
	h := env.instanceHandler()

	req := asUser(jsonRequest(t, "DELETE", "/api/instances/"+inst.ID+"/remove-member", map[string]int64{
		"user_id": bob.ID,
	}), owner.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.RemoveMember(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if msg := decodeBody(t, rec)["message"]; msg != "Member removed successfully" {
		t.Errorf("message = %q, want removed message", msg)
	}
	if role, _ := env.members.GetRole(inst.ID, bob.ID); role != "" {
		t.Errorf("role after removal = %q, want empty", role)
	}
}

func TestRemoveMemberNotFound(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	stranger := env.createUser(t, "stranger@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.instanceHandler()

	req := asUser(jsonRequest(t, "DELETE", "/api/instances/"+inst.ID+"/remove-member", map[string]int64{
		"user_id": stranger.ID,
	}), owner.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.RemoveMember(rec, req)

	wantError(t, rec, http.StatusNotFound, "Member not found")
}

func TestBusinessHoursRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.instanceHandler()

	entries := []map[string]any{
		{"day_of_week": 1, "opening_time": "09:00", "closing_time": "18:00"},
		{"day_of_week": 2, "opening_time": "09:00", "closing_time": "18:00"},
		{"day_of_week": 0, "is_closed": true},
	}
	req := asUser(jsonRequest(t, "PUT", "/api/instances/"+inst.ID+"/business-hours", entries), owner.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.UpdateBusinessHours(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if msg := decodeBody(t, rec)["message"]; msg != "Business hours updated successfully" {
		t.Errorf("message = %q, want updated message", msg)
	}

	getReq := asUser(httptest.NewRequest("GET", "/api/instances/"+inst.ID+"/business-hours", nil), owner.ID, 1)
	getReq.SetPathValue("id", inst.ID)
	getRec := httptest.NewRecorder()
	h.GetBusinessHours(getRec, getReq)

	var hours []model.BusinessHour
	if err := jsonDecode(getRec, &hours); err != nil {
		t.Fatalf("decode hours: %v", err)
	}
	if len(hours) != 3 {
		t.Fatalf("hours = %d, want 3", len(hours))
	}
	if !hours[0].IsClosed || hours[0].DayOfWeek != 0 {
		t.Errorf("expected day 0 first and closed, got %+v", hours[0])
	}
}

func TestBusinessHoursInvalidDay(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.instanceHandler()

	entries := []map[string]any{
		{"day_of_week": 7, "opening_time": "09:00", "closing_time": "18:00"},
	}
	req := asUser(jsonRequest(t, "PUT", "/api/instances/"+inst.ID+"/business-hours", entries), owner.ID, 1)
	req.SetPathValue("id", inst.ID)
	rec := httptest.NewRecorder()
	h.UpdateBusinessHours(rec, req)

	wantError(t, rec, http.StatusBadRequest, "day_of_week must be between 0 and 6")
}
