package doctor

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/blobstore"
	"github.com/ehr/portal/internal/platform/dispatch"
	"github.com/ehr/portal/internal/platform/media"
	"github.com/ehr/portal/internal/platform/result"
	"github.com/ehr/portal/internal/platform/validation"
)

// -- Mock Repository --

type mockRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Doctor
	calls int
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Doctor)}
}

func (m *mockRepo) Create(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, existing := range m.store {
		if existing.Email == d.Email {
			return ErrEmailTaken
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	m.store[d.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	existing, ok := m.store[d.ID]
	if !ok {
		return ErrNotFound
	}
	d.ProfileURL = existing.ProfileURL
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = time.Now()
	cp := *d
	m.store[d.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, role string, limit, offset int) ([]*Doctor, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Doctor
	for _, d := range m.store {
		if role == "" || d.Role == role {
			cp := *d
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].FullName < all[j].FullName })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockRepo) SetProfileURL(_ context.Context, id uuid.UUID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	d.ProfileURL = url
	return nil
}

// -- Mock collaborators --

type stubRegistrar struct {
	err   error
	calls []string
}

func (r *stubRegistrar) Register(_ context.Context, id uuid.UUID, email, _, role string) result.Result[*auth.User] {
	r.calls = append(r.calls, email+"/"+role)
	if r.err != nil {
		return result.Fail[*auth.User](r.err)
	}
	return result.Ok(&auth.User{ID: id, Email: email, Role: role})
}

type stubMailer struct {
	sent []string
}

func (m *stubMailer) EnqueueTemplate(_ context.Context, ch dispatch.Channel, recipient, templateID string, _ map[string]string) error {
	m.sent = append(m.sent, string(ch)+":"+recipient+":"+templateID)
	return nil
}

const testBaseURL = "http://localhost:8000"

func newTestService() (*Service, *mockRepo, *blobstore.MemoryStore) {
	repo := newMockRepo()
	objects := blobstore.NewMemoryStore()
	bucket := media.NewBucket(objects, "avatars", blobstore.URLs{BaseURL: testBaseURL})
	return NewService(repo, bucket, zerolog.Nop()), repo, objects
}

func validDoctor() *Doctor {
	return &Doctor{
		FullName:       "Dr. Ann Lee",
		Email:          "ann@clinic.org",
		Phone:          "+15551234567",
		Role:           RoleDoctor,
		Specialization: "Obstetrics",
		Description:    "Consultant obstetrician with ten years of practice",
	}
}

func pngImage(size int) media.Image {
	data := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, size)...)
	return media.Image{FileName: "me.png", ContentType: "image/png", Data: data}
}

// -- Tests --

func TestApplyTitle(t *testing.T) {
	tests := []struct {
		name, role, want string
	}{
		{"bob", RoleDoctor, "Dr. bob"},
		{"Dr. Bob", RoleDoctor, "Dr. Bob"},
		{"dr bob", RoleDoctor, "dr bob"},
		{"DR.Bob", RoleDoctor, "DR.Bob"},
		{"Drake", RoleDoctor, "Dr. Drake"},
		{"amy", RoleNurse, "Nur. amy"},
		{"Nur. Amy", RoleNurse, "Nur. Amy"},
		{"NUR amy", RoleNurse, "NUR amy"},
		{"Nurit", RoleNurse, "Nur. Nurit"},
		{"carl", auth.RoleAdmin, "carl"},
	}
	for _, tt := range tests {
		if got := ApplyTitle(tt.name, tt.role); got != tt.want {
			t.Errorf("ApplyTitle(%q, %q) = %q, want %q", tt.name, tt.role, got, tt.want)
		}
	}
}

func TestStripTitle(t *testing.T) {
	tests := []struct {
		name, role, want string
	}{
		{"Dr. Bob", RoleDoctor, "Bob"},
		{"dr bob", RoleDoctor, "bob"},
		{"Drake", RoleDoctor, "Drake"},
		{"Nur. Amy", RoleNurse, "Amy"},
		{"Dr. Amy", RoleNurse, "Dr. Amy"},
		{"Dr. Carl", auth.RoleAdmin, "Dr. Carl"},
	}
	for _, tt := range tests {
		if got := StripTitle(tt.name, tt.role); got != tt.want {
			t.Errorf("StripTitle(%q, %q) = %q, want %q", tt.name, tt.role, got, tt.want)
		}
	}
}

func TestAddDoctor(t *testing.T) {
	svc, _, _ := newTestService()
	res := svc.AddDoctor(context.Background(), validDoctor())
	if !res.Success() {
		t.Fatalf("add failed: %v", res.Err())
	}
	d := res.Data()
	if d.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}

	fetched := svc.FetchDoctor(context.Background(), d.ID)
	if !fetched.Success() || fetched.Data().Email != "ann@clinic.org" {
		t.Errorf("fetch: %+v %v", fetched.Data(), fetched.Err())
	}
}

func TestAddDoctor_ValidationStopsBeforeStore(t *testing.T) {
	svc, repo, _ := newTestService()
	d := validDoctor()
	d.Email = "not-an-email"
	d.Role = "surgeon"

	res := svc.AddDoctor(context.Background(), d)
	if res.Success() {
		t.Fatal("expected failure")
	}
	var fields validation.Errors
	if !errors.As(res.Err(), &fields) {
		t.Fatalf("expected validation.Errors, got %v", res.Err())
	}
	if fields["email"] != validation.MsgEmail {
		t.Errorf("email: %q", fields["email"])
	}
	if fields["role"] == "" {
		t.Error("expected role error")
	}
	if repo.calls != 0 {
		t.Errorf("expected no store call, got %d", repo.calls)
	}
}

func TestAddDoctor_RegistersCredentials(t *testing.T) {
	svc, _, _ := newTestService()
	reg := &stubRegistrar{}
	mail := &stubMailer{}
	svc.SetRegistrar(reg)
	svc.SetMailer(mail)

	d := validDoctor()
	d.Password, d.ConfirmPassword = "Secret1", "Secret1"
	res := svc.AddDoctor(context.Background(), d)
	if !res.Success() {
		t.Fatalf("add failed: %v", res.Err())
	}
	if res.Data().Password != "" {
		t.Error("password must not be kept on the record")
	}
	if len(reg.calls) != 1 || reg.calls[0] != "ann@clinic.org/doctor" {
		t.Errorf("unexpected registrations %v", reg.calls)
	}
	if len(mail.sent) != 1 || mail.sent[0] != "email:ann@clinic.org:"+dispatch.TemplateWelcome {
		t.Errorf("unexpected mail %v", mail.sent)
	}
}

func TestAddDoctor_RegistrationFailureRollsBack(t *testing.T) {
	svc, repo, _ := newTestService()
	svc.SetRegistrar(&stubRegistrar{err: auth.ErrEmailTaken})

	d := validDoctor()
	d.Password = "Secret1"
	res := svc.AddDoctor(context.Background(), d)
	if !errors.Is(res.Err(), auth.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", res.Err())
	}
	if len(repo.store) != 0 {
		t.Errorf("expected record removed, %d left", len(repo.store))
	}
}

func TestAddDoctor_PasswordMismatch(t *testing.T) {
	svc, _, _ := newTestService()
	d := validDoctor()
	d.Password, d.ConfirmPassword = "Secret1", "Secret2"
	res := svc.AddDoctor(context.Background(), d)
	var fields validation.Errors
	if !errors.As(res.Err(), &fields) || fields["confirm_password"] != validation.MsgPasswordMismatch {
		t.Errorf("expected mismatch, got %v", res.Err())
	}
}

func TestFetchDoctor_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	res := svc.FetchDoctor(context.Background(), uuid.New())
	if res.Success() {
		t.Fatal("expected failure")
	}
	if !res.NotFound() {
		t.Errorf("expected not found, got %v", res.Err())
	}
}

func TestUpdateDoctor(t *testing.T) {
	svc, _, _ := newTestService()
	created := svc.AddDoctor(context.Background(), validDoctor()).Data()

	upd := validDoctor()
	upd.Specialization = "Neonatology"
	res := svc.UpdateDoctor(context.Background(), created.ID, upd)
	if !res.Success() {
		t.Fatalf("update failed: %v", res.Err())
	}
	if res.Data().Specialization != "Neonatology" || res.Data().ID != created.ID {
		t.Errorf("unexpected update %+v", res.Data())
	}

	missing := svc.UpdateDoctor(context.Background(), uuid.New(), validDoctor())
	if !missing.NotFound() {
		t.Errorf("expected not found, got %v", missing.Err())
	}
}

func TestListDoctors(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for i, name := range []string{"Amy", "Bea", "Cid"} {
		d := validDoctor()
		d.FullName = name
		d.Email = strings.ToLower(name) + "@clinic.org"
		if i == 1 {
			d.Role = RoleNurse
		}
		svc.AddDoctor(ctx, d)
	}

	all := svc.ListDoctors(ctx, "", 2, 0)
	if !all.Success() || all.Data().Total != 3 || len(all.Data().Items) != 2 || !all.Data().HasMore {
		t.Fatalf("unexpected page %+v %v", all.Data(), all.Err())
	}

	nurses := svc.ListDoctors(ctx, RoleNurse, 0, 0)
	if nurses.Data().Total != 1 || nurses.Data().Items[0].FullName != "Bea" {
		t.Errorf("unexpected nurses %+v", nurses.Data())
	}

	if bad := svc.ListDoctors(ctx, "janitor", 10, 0); bad.Success() {
		t.Error("expected unknown role to fail")
	}
}

func TestDeleteDoctor_RemovesImage(t *testing.T) {
	svc, _, objects := newTestService()
	ctx := context.Background()
	d := svc.AddDoctor(ctx, validDoctor()).Data()
	if res := svc.UploadDoctorImage(ctx, d.ID, pngImage(128)); !res.Success() {
		t.Fatalf("upload: %v", res.Err())
	}
	if objects.Len() != 1 {
		t.Fatalf("expected 1 object, got %d", objects.Len())
	}

	if res := svc.DeleteDoctor(ctx, d.ID); !res.Success() {
		t.Fatalf("delete: %v", res.Err())
	}
	if objects.Len() != 0 {
		t.Errorf("expected image removed, %d left", objects.Len())
	}
	if !svc.FetchDoctor(ctx, d.ID).NotFound() {
		t.Error("expected record gone")
	}
}

func TestUploadDoctorImage_ReplacesPrevious(t *testing.T) {
	svc, _, objects := newTestService()
	ctx := context.Background()
	d := svc.AddDoctor(ctx, validDoctor()).Data()

	first := svc.UploadDoctorImage(ctx, d.ID, pngImage(64))
	if !first.Success() {
		t.Fatalf("first upload: %v", first.Err())
	}
	if !strings.HasPrefix(first.URL(), testBaseURL+blobstore.PublicPrefix+"avatars/doctors/"+d.ID.String()+"-") {
		t.Errorf("unexpected url %s", first.URL())
	}
	if first.Data().ProfileURL != first.URL() {
		t.Error("record should point at the uploaded url")
	}

	second := svc.UploadDoctorImage(ctx, d.ID, pngImage(32))
	if !second.Success() {
		t.Fatalf("second upload: %v", second.Err())
	}
	if second.URL() == first.URL() {
		t.Error("expected a fresh key")
	}
	if objects.Len() != 1 {
		t.Errorf("expected previous object removed, %d stored", objects.Len())
	}
}

func TestUploadDoctorImage_TooLargeKeepsPrevious(t *testing.T) {
	svc, _, objects := newTestService()
	ctx := context.Background()
	d := svc.AddDoctor(ctx, validDoctor()).Data()
	prev := svc.UploadDoctorImage(ctx, d.ID, pngImage(64)).URL()

	res := svc.UploadDoctorImage(ctx, d.ID, pngImage(6*1024*1024))
	if res.Success() {
		t.Fatal("expected 6MB image to be rejected")
	}
	if res.Err().Error() != "Image size must be less than 5MB" {
		t.Errorf("unexpected message %q", res.Err().Error())
	}
	if res.URL() != "" {
		t.Error("failure must not carry a url")
	}
	if objects.Len() != 1 {
		t.Errorf("expected only the previous object, got %d", objects.Len())
	}
	if got := svc.FetchDoctor(ctx, d.ID).Data().ProfileURL; got != prev {
		t.Errorf("previous image changed: %s", got)
	}
}

func TestUploadDoctorImage_UnsupportedExtension(t *testing.T) {
	svc, _, objects := newTestService()
	ctx := context.Background()
	d := svc.AddDoctor(ctx, validDoctor()).Data()

	res := svc.UploadDoctorImage(ctx, d.ID, media.Image{FileName: "scan.bmp", Data: []byte("BM")})
	if !errors.Is(res.Err(), media.ErrUnsupportedImage) {
		t.Errorf("expected ErrUnsupportedImage, got %v", res.Err())
	}
	if objects.Len() != 0 {
		t.Error("nothing should be stored")
	}
}

func TestModal_AppliesTitleOnce(t *testing.T) {
	svc, _, _ := newTestService()
	refreshed := 0
	m := NewModal(svc, func() { refreshed++ }, zerolog.Nop())
	m.OpenCreate()
	m.Form().Fill(map[string]string{"full_name": "bob", "email": "bob@clinic.org", "role": RoleDoctor})

	sub, err := m.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Fields) != 0 || !sub.Result.Success() {
		t.Fatalf("unexpected submission %+v %v", sub.Fields, sub.Result.Err())
	}
	saved := sub.Result.Data()
	if saved.FullName != "Dr. bob" {
		t.Errorf("expected 'Dr. bob', got %q", saved.FullName)
	}
	if refreshed != 1 || m.IsOpen() {
		t.Errorf("expected refresh and close, refreshed=%d open=%v", refreshed, m.IsOpen())
	}

	m.OpenEdit(saved.ID.String(), saved.Values())
	m.Form().Set("specialization", "Pediatrics")
	sub, _ = m.Submit(context.Background())
	if !sub.Result.Success() || sub.Result.Data().FullName != "Dr. bob" {
		t.Errorf("edit re-applied title: %+v %v", sub.Result.Data(), sub.Result.Err())
	}
}

func TestModal_LongNameFitsAfterTitle(t *testing.T) {
	svc, repo, _ := newTestService()
	m := NewModal(svc, nil, zerolog.Nop())
	m.OpenCreate()
	name := strings.Repeat("a", 48)
	m.Form().Fill(map[string]string{"full_name": name, "email": "long@clinic.org", "role": RoleDoctor})

	sub, err := m.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Fields) != 0 || !sub.Result.Success() {
		t.Fatalf("expected success, got %v %v", sub.Fields, sub.Result.Err())
	}
	if got := sub.Result.Data().FullName; got != "Dr. "+name {
		t.Errorf("expected titled name, got %q", got)
	}
	if repo.calls != 1 {
		t.Errorf("expected one store call, got %d", repo.calls)
	}
}

func TestAddDoctor_TitledNameStillLimited(t *testing.T) {
	svc, repo, _ := newTestService()
	d := validDoctor()
	d.FullName = "Dr. " + strings.Repeat("a", 51)

	res := svc.AddDoctor(context.Background(), d)
	if res.Success() {
		t.Fatal("expected validation failure")
	}
	var verrs validation.Errors
	if !errors.As(res.Err(), &verrs) || verrs["full_name"] != validation.MsgNameTooLong {
		t.Errorf("unexpected error %v", res.Err())
	}
	if repo.calls != 0 {
		t.Error("store must not be called")
	}
}

func TestModal_EditRoleChangeKeepsName(t *testing.T) {
	svc, _, _ := newTestService()
	saved := svc.AddDoctor(context.Background(), &Doctor{FullName: "Dr. Ann", Email: "ann@ward.org", Role: RoleDoctor}).Data()

	m := NewModal(svc, nil, zerolog.Nop())
	m.OpenEdit(saved.ID.String(), saved.Values())
	m.Form().Set("role", RoleNurse)
	sub, err := m.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !sub.Result.Success() {
		t.Fatalf("edit failed: %v %v", sub.Fields, sub.Result.Err())
	}
	got := sub.Result.Data()
	if got.FullName != "Dr. Ann" || got.Role != RoleNurse {
		t.Errorf("expected name kept and role changed, got %q %q", got.FullName, got.Role)
	}
}

func TestModal_InvalidEmailBlocksSubmit(t *testing.T) {
	svc, repo, _ := newTestService()
	m := NewModal(svc, nil, zerolog.Nop())
	m.OpenCreate()
	m.Form().Fill(map[string]string{"full_name": "bob", "email": "bob@", "role": RoleDoctor})

	sub, _ := m.Submit(context.Background())
	if sub.Called || repo.calls != 0 {
		t.Error("service must not be called")
	}
	if sub.Fields["email"] != validation.MsgEmail {
		t.Errorf("unexpected field errors %v", sub.Fields)
	}
}
