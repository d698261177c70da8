package convert

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/and161185/slotguard/internal/model"
)

func TestFromChallenge(t *testing.T) {
	t.Parallel()

	if _, err := FromChallenge(ChallengeResponse{SVG: "<svg/>"}); err == nil {
		t.Fatalf("missing captchaId must fail")
	}
	if _, err := FromChallenge(ChallengeResponse{CaptchaID: "c1"}); err == nil {
		t.Fatalf("missing svg must fail")
	}
	c, err := FromChallenge(ChallengeResponse{SVG: "<svg/>", CaptchaID: "c1"})
	if err != nil || c.ID != "c1" || c.Artifact != "<svg/>" || !c.Loaded() {
		t.Fatalf("challenge mismatch: %+v %v", c, err)
	}
}

func TestFromLoginStages(t *testing.T) {
	t.Parallel()

	if _, err := FromLoginStage1(LoginStage1Response{LoginID: "L1"}); err == nil {
		t.Fatalf("missing questions must fail")
	}
	lc, err := FromLoginStage1(LoginStage1Response{LoginID: "L1", Questions: []string{"Q1", "Q2", "Q3"}})
	if err != nil || lc.CorrelationID != "L1" || len(lc.Questions) != 3 {
		t.Fatalf("stage1 mismatch: %+v %v", lc, err)
	}

	if _, err := FromLoginStage2(LoginStage2Response{Token: "T"}); err == nil {
		t.Fatalf("missing user must fail")
	}
	var resp LoginStage2Response
	if err := json.Unmarshal([]byte(`{"token":"T","user":{"name":"Sam"}}`), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	id, err := FromLoginStage2(resp)
	if err != nil || id.Token != "T" || id.User.Name != "Sam" {
		t.Fatalf("stage2 mismatch: %+v %v", id, err)
	}
}

func TestRequests_WireNames(t *testing.T) {
	t.Parallel()

	b, _ := json.Marshal(ToLoginStage1(model.Credentials{Username: "u", Password: "p", ChallengeID: "c", ChallengeAnswer: "a"}))
	for _, k := range []string{`"username":"u"`, `"captchaId":"c"`, `"captchaAnswer":"a"`} {
		if !strings.Contains(string(b), k) {
			t.Fatalf("login payload %s lacks %s", b, k)
		}
	}

	b, _ = json.Marshal(ToRegisterStage2("R1", []model.QuestionAnswer{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}}))
	want := `{"registrationId":"R1","answers":[{"question":"q1","answer":"a1"},{"question":"q2","answer":"a2"}]}`
	if string(b) != want {
		t.Fatalf("stage2 payload = %s, want %s", b, want)
	}

	b, _ = json.Marshal(ToRegisterStage1(model.Profile{Name: "n", Email: "e", Password: "p", ConfirmPassword: "p"}))
	if !strings.Contains(string(b), `"confirmPassword":"p"`) {
		t.Fatalf("stage1 payload: %s", b)
	}

	b, _ = json.Marshal(ReserveRequest{Token: "T", DateID: "12"})
	if string(b) != `{"token":"T","dateId":12}` {
		t.Fatalf("reserve payload: %s", b)
	}
}

func TestFromCalendar(t *testing.T) {
	t.Parallel()

	raw := `{"months":[{"label":"Jan","days":[
		{"id":1,"date":"01","status":"available"},
		{"id":2,"date":"02","status":"reserved","holder":"u1"},
		{"id":"3","date":"03","status":"weird","holder":null},
		{"id":4,"date":"04","status":"Reserved","holder":7}
	]}]}`
	var in CalendarResponse
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	v, err := FromCalendar(in)
	if err != nil {
		t.Fatalf("FromCalendar: %v", err)
	}
	days := v.Months[0].Days
	if days[0].Status != model.StatusAvailable || days[1].Holder != "u1" {
		t.Fatalf("days mismatch: %+v", days)
	}
	if days[2].ID != "3" || days[2].Status != model.StatusUnavailable || days[2].Holder != "" {
		t.Fatalf("unknown status must map to unavailable: %+v", days[2])
	}
	if days[3].Status != model.StatusReserved || days[3].Holder != "7" {
		t.Fatalf("numeric holder: %+v", days[3])
	}

	in.Months[0].Days[0].Holder = json.RawMessage(`"me"`)
	if _, err := FromCalendar(in); err == nil {
		t.Fatalf("holder on available day must fail validation")
	}
}
