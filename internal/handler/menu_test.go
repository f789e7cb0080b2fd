package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/veomenu/veomenu/internal/model"
)

func TestCreateMenuActiveByDefault(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.menuHandler()

	req := asUser(jsonRequest(t, "POST", "/api/menus", map[string]any{
		"instance":            inst.ID,
		"name":                "Dinner",
		"available_languages": []string{"en", "pt"},
	}), owner.ID, 1)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["message"] != "Menu created successfully" {
		t.Errorf("message = %q, want created message", body["message"])
	}
	menu, _ := body["menu"].(map[string]any)
	id, _ := menu["id"].(string)
	if id == "" {
		t.Fatal("expected menu id")
	}
	if menu["is_active"] != true {
		t.Error("expected a fresh menu to be active")
	}
	if menu["default_language"] != "en" {
		t.Errorf("default_language = %q, want en fallback", menu["default_language"])
	}

	// The first menu becomes the instance's QR default.
	updatedInst, _ := env.instances.GetByID(inst.ID)
	if updatedInst.QRSelectedMenuID == nil || *updatedInst.QRSelectedMenuID != id {
		t.Errorf("qr_selected_menu_id = %v, want %q", updatedInst.QRSelectedMenuID, id)
	}
}

func TestCreateMenuKeepsFirstQRDefault(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	first := env.createMenu(t, inst.ID, "Lunch")
	if err := env.instances.SetQRSelectedMenu(inst.ID, first.ID); err != nil {
		t.Fatalf("set qr default: %v", err)
	}
	h := env.menuHandler()

	req := asUser(jsonRequest(t, "POST", "/api/menus", map[string]any{
		"instance":            inst.ID,
		"name":                "Dinner",
		"available_languages": []string{"en"},
	}), owner.ID, 1)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	updatedInst, _ := env.instances.GetByID(inst.ID)
	if updatedInst.QRSelectedMenuID == nil || *updatedInst.QRSelectedMenuID != first.ID {
		t.Errorf("qr_selected_menu_id = %v, want the first menu %q", updatedInst.QRSelectedMenuID, first.ID)
	}
}

func TestCreateMenuStaffForbidden(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	staff := env.createUser(t, "staff@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	env.addMember(t, inst.ID, staff.ID, model.RoleStaff)
	h := env.menuHandler()

	req := asUser(jsonRequest(t, "POST", "/api/menus", map[string]any{
		"instance":            inst.ID,
		"name":                "Dinner",
		"available_languages": []string{"en"},
	}), staff.ID, 1)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	wantError(t, rec, http.StatusForbidden, "You do not have permission to create menus for this instance")
}

func TestCreateMenuDefaultLanguageNotAvailable(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.menuHandler()

	req := asUser(jsonRequest(t, "POST", "/api/menus", map[string]any{
		"instance":            inst.ID,
		"name":                "Dinner",
		"default_language":    "fr",
		"available_languages": []string{"en", "pt"},
	}), owner.ID, 1)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	wantError(t, rec, http.StatusBadRequest, "Default language 'fr' must be in available languages.")
}

func TestCreateMenuNoLanguages(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.menuHandler()

	req := asUser(jsonRequest(t, "POST", "/api/menus", map[string]any{
		"instance": inst.ID,
		"name":     "Dinner",
	}), owner.ID, 1)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	wantError(t, rec, http.StatusBadRequest, "At least one language must be specified.")
}

func TestListMenusNonMemberForbidden(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	outsider := env.createUser(t, "outsider@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	h := env.menuHandler()

	req := asUser(httptest.NewRequest("GET", "/api/menus?instance="+inst.ID, nil), outsider.ID, 1)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	wantError(t, rec, http.StatusForbidden, "You do not have access to this instance")
}

func TestListMenusAcrossInstances(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	instA := env.createInstance(t, owner.ID, "Tasca do Rui")
	instB := env.createInstance(t, owner.ID, "Casa da Maria")
	env.createMenu(t, instA.ID, "Lunch")
	env.createMenu(t, instB.ID, "Dinner")
	h := env.menuHandler()

	req := asUser(httptest.NewRequest("GET", "/api/menus", nil), owner.ID, 1)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var menus []model.Menu
	if err := jsonDecode(rec, &menus); err != nil {
		t.Fatalf("decode menus: %v", err)
	}
	if len(menus) != 2 {
		t.Errorf("menus = %d, want 2 across both instances", len(menus))
	}
}

func TestPublicMenuHidesInactive(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	menu, err := env.menus.Create(&model.Menu{
		InstanceID:         inst.ID,
		Name:               "Dinner",
		DefaultLanguage:    "en",
		AvailableLanguages: []string{"en"},
		IsActive:           false,
	})
	if err != nil {
		t.Fatalf("create menu: %v", err)
	}
	h := env.menuHandler()

	req := httptest.NewRequest("GET", "/api/menus/"+menu.ID+"/public", nil)
	req.SetPathValue("id", menu.ID)
	rec := httptest.NewRecorder()
	h.Public(rec, req)

	wantError(t, rec, http.StatusNotFound, "This menu is not currently available")
}

func TestPublicMenuRecordsView(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	menu := env.createMenu(t, inst.ID, "Dinner")
	h := env.menuHandler()

	req := httptest.NewRequest("GET", "/api/menus/"+menu.ID+"/public?language=pt", nil)
	req.SetPathValue("id", menu.ID)
	rec := httptest.NewRecorder()
	h.Public(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if count := decodeBody(t, rec)["view_count"]; count != float64(1) {
		t.Errorf("view_count = %v, want 1", count)
	}

	again := httptest.NewRequest("GET", "/api/menus/"+menu.ID+"/public", nil)
	again.SetPathValue("id", menu.ID)
	againRec := httptest.NewRecorder()
	h.Public(againRec, again)

	if count := decodeBody(t, againRec)["view_count"]; count != float64(2) {
		t.Errorf("view_count after second visit = %v, want 2", count)
	}
}

func TestMenuAnalytics(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	menu := env.createMenu(t, inst.ID, "Dinner")
	for i := 0; i < 3; i++ {
		if err := env.views.Record(menu.ID, "pt", model.DeviceMobile); err != nil {
			t.Fatalf("record view: %v", err)
		}
	}
	h := env.menuHandler()

	req := asUser(httptest.NewRequest("GET", "/api/menus/"+menu.ID+"/analytics?days=14", nil), owner.ID, 1)
	req.SetPathValue("id", menu.ID)
	rec := httptest.NewRecorder()
	h.Analytics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var analytics model.MenuAnalytics
	if err := jsonDecode(rec, &analytics); err != nil {
		t.Fatalf("decode analytics: %v", err)
	}
	if analytics.PeriodDays != 14 {
		t.Errorf("period_days = %d, want 14", analytics.PeriodDays)
	}
	if analytics.TotalViews != 3 {
		t.Errorf("total_views = %d, want 3", analytics.TotalViews)
	}
	if analytics.LanguageBreakdown["pt"] != 3 {
		t.Errorf("pt views = %d, want 3", analytics.LanguageBreakdown["pt"])
	}
	if len(analytics.ViewsByDay) != 14 {
		t.Errorf("views_by_day length = %d, want every day in the window", len(analytics.ViewsByDay))
	}
}

func TestMenuAnalyticsStaffForbidden(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	staff := env.createUser(t, "staff@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	env.addMember(t, inst.ID, staff.ID, model.RoleStaff)
	menu := env.createMenu(t, inst.ID, "Dinner")
	h := env.menuHandler()

	req := asUser(httptest.NewRequest("GET", "/api/menus/"+menu.ID+"/analytics", nil), staff.ID, 1)
	req.SetPathValue("id", menu.ID)
	rec := httptest.NewRecorder()
	h.Analytics(rec, req)

	wantError(t, rec, http.StatusForbidden, "You do not have permission to view analytics")
}

func TestMenuAnalyticsInvalidDays(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	menu := env.createMenu(t, inst.ID, "Dinner")
	h := env.menuHandler()

	for _, days := range []string{"zero", "-3", "0"} {
		req := asUser(httptest.NewRequest("GET", "/api/menus/"+menu.ID+"/analytics?days="+days, nil), owner.ID, 1)
		req.SetPathValue("id", menu.ID)
		rec := httptest.NewRecorder()
		h.Analytics(rec, req)
		wantError(t, rec, http.StatusBadRequest, "days must be a positive number")
	}
}

func TestDuplicateMenu(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	menu := env.createMenu(t, inst.ID, "Dinner")
	sec := env.createSection(t, menu.ID)
	if _, err := env.items.Create(&model.MenuItem{
		SectionID:   sec.ID,
		Name:        map[string]string{"en": "Soup"},
		Price:       4.5,
		Currency:    "EUR",
		IsActive:    true,
		IsAvailable: true,
	}); err != nil {
		t.Fatalf("create item: %v", err)
	}
	h := env.menuHandler()

	req := asUser(jsonRequest(t, "POST", "/api/menus/"+menu.ID+"/duplicate", nil), owner.ID, 1)
	req.SetPathValue("id", menu.ID)
	rec := httptest.NewRecorder()
	h.Duplicate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["message"] != "Menu duplicated successfully" {
		t.Errorf("message = %q, want duplicated message", body["message"])
	}
	copied, _ := body["menu"].(map[string]any)
	name, _ := copied["name"].(string)
	if !strings.HasSuffix(name, " (Copy)") {
		t.Errorf("copy name = %q, want (Copy) suffix", name)
	}
	if copied["is_active"] != false {
		t.Error("expected the copy to start inactive")
	}

	// The copy carries the sections and items of the original.
	full, err := env.menus.GetFull(copied["id"].(string), false)
	if err != nil {
		t.Fatalf("load copy: %v", err)
	}
	if len(full.Sections) != 1 {
		t.Fatalf("copied sections = %d, want 1", len(full.Sections))
	}
	if len(full.Sections[0].Items) != 1 {
		t.Errorf("copied items = %d, want 1", len(full.Sections[0].Items))
	}
}

func TestUpdateMenuDeactivateHidesPublic(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	inst := env.createInstance(t, owner.ID, "Tasca do Rui")
	menu := env.createMenu(t, inst.ID, "Dinner")
	h := env.menuHandler()

	req := asUser(jsonRequest(t, "PUT", "/api/menus/"+menu.ID, map[string]any{
		"is_active": false,
	}), owner.ID, 1)
	req.SetPathValue("id", menu.ID)
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	pub := httptest.NewRequest("GET", "/api/menus/"+menu.ID+"/public", nil)
	pub.SetPathValue("id", menu.ID)
	pubRec := httptest.NewRecorder()
	h.Public(pubRec, pub)

	wantError(t, pubRec, http.StatusNotFound, "This menu is not currently available")
}

func TestGetMenuUnknownID(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "owner@example.com")
	h := env.menuHandler()

	id := uuid.NewString()
	req := asUser(httptest.NewRequest("GET", "/api/menus/"+id, nil), u.ID, 1)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	wantError(t, rec, http.StatusNotFound, "Menu not found")
}
