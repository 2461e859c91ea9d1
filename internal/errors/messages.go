package errors

import (
	"errors"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message catalog keys.
const (
	KeyGeneric            = "error.generic"
	KeyDemoCredentials    = "error.invalid_credentials.demo"
	KeyDemoUserNotFound   = "error.not_found.demo_user"
	KeyCriteriaNotFound   = "error.not_found.search_criteria"
	KeySaveSearchDenied   = "error.permission_denied.save_search"
	KeyContactDenied      = "error.permission_denied.contact"
	KeyLoginToSaveSearch  = "error.unauthenticated.save_search"
	KeyLoginToContact     = "error.unauthenticated.contact"
	KeyInvalidEmail       = "error.validation.email"
	KeyPasswordMismatch   = "error.validation.password_mismatch"
	KeySessionNotFound    = "error.not_found.session"
	KeyConfirmationFailed = "error.generic.confirm_email"
)

var supported = []language.Tag{
	language.BrazilianPortuguese,
	language.English,
}

var matcher = language.NewMatcher(supported)

var ptBR = map[string]string{
	KeyGeneric:                     "Erro inesperado. Tente novamente.",
	"error.generic.sign_up":        "Erro ao criar conta. Tente novamente.",
	"error.generic.sign_in":        "Erro ao fazer login. Tente novamente.",
	"error.generic.reset_password": "Erro ao enviar email de recuperação.",
	KeyConfirmationFailed:          "Erro ao processar confirmação.",
	"error.invalid_credentials":    "Email ou senha incorretos.",
	KeyDemoCredentials:             "Email ou senha incorretos. Use demo@edublin.com.br / demo123 ou crie uma conta demo.",
	"error.already_registered":     "Este email já está cadastrado. Tente fazer login.",
	"error.weak_password":          "A senha deve ter pelo menos 6 caracteres.",
	"error.email_not_confirmed":    "Confirme seu email para fazer login.",
	"error.unauthenticated":        "É necessário estar logado.",
	KeyLoginToSaveSearch:           "É necessário estar logado para salvar a busca.",
	KeyLoginToContact:              "É necessário estar logado para solicitar contato.",
	"error.timeout":                "Operação demorou mais que o esperado. Verifique sua conexão.",
	"error.unavailable":            "Sistema temporariamente indisponível. Tente novamente em alguns momentos.",
	"error.fallback":               "Sistema temporariamente indisponível. Tente novamente em alguns momentos.",
	"error.permission_denied":      "Permissão negada.",
	KeySaveSearchDenied:            "Não foi possível salvar a busca. Tente fazer login novamente.",
	KeyContactDenied:               "Não foi possível enviar a solicitação. Verifique se você está logado.",
	"error.not_found":              "Registro não encontrado.",
	KeyDemoUserNotFound:            "Usuário demo não encontrado.",
	KeyCriteriaNotFound:            "Critérios de busca não encontrados",
	KeySessionNotFound:             "Sessão não encontrada.",
	"error.not_configured":         "Sistema não configurado. Entre em contato com o suporte.",
	"error.validation":             "Dados inválidos.",
	KeyInvalidEmail:                "Email inválido.",
	KeyPasswordMismatch:            "As senhas não coincidem.",
}

var en = map[string]string{
	KeyGeneric:                     "Unexpected error. Please try again.",
	"error.generic.sign_up":        "Could not create the account. Please try again.",
	"error.generic.sign_in":        "Could not sign in. Please try again.",
	"error.generic.reset_password": "Could not send the recovery email.",
	KeyConfirmationFailed:          "Could not process the confirmation.",
	"error.invalid_credentials":    "Incorrect email or password.",
	KeyDemoCredentials:             "Incorrect email or password. Use demo@edublin.com.br / demo123 or create a demo account.",
	"error.already_registered":     "This email is already registered. Try signing in.",
	"error.weak_password":          "The password must be at least 6 characters long.",
	"error.email_not_confirmed":    "Confirm your email to sign in.",
	"error.unauthenticated":        "You need to be signed in.",
	KeyLoginToSaveSearch:           "You need to be signed in to save the search.",
	KeyLoginToContact:              "You need to be signed in to request contact.",
	"error.timeout":                "The operation took longer than expected. Check your connection.",
	"error.unavailable":            "Service temporarily unavailable. Please try again shortly.",
	"error.fallback":               "Service temporarily unavailable. Please try again shortly.",
	"error.permission_denied":      "Permission denied.",
	KeySaveSearchDenied:            "Could not save the search. Try signing in again.",
	KeyContactDenied:               "Could not send the request. Check that you are signed in.",
	"error.not_found":              "Record not found.",
	KeyDemoUserNotFound:            "Demo user not found.",
	KeyCriteriaNotFound:            "Search criteria not found",
	KeySessionNotFound:             "Session not found.",
	"error.not_configured":         "Service not configured. Please contact support.",
	"error.validation":             "Invalid data.",
	KeyInvalidEmail:                "Invalid email.",
	KeyPasswordMismatch:            "Passwords do not match.",
}

func init() {
	for key, msg := range ptBR {
		_ = message.SetString(language.BrazilianPortuguese, key, msg)
	}
	for key, msg := range en {
		_ = message.SetString(language.English, key, msg)
	}
}

// MatchLocale resolves a locale string ("pt-BR", "en-US", an
// Accept-Language header) to one of the supported catalogs.
func MatchLocale(locale string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// Localize renders the user-facing message for err.
//
// Lookup order: explicit Key, verbatim Msg, "error.generic.<op>" for
// unknown kinds, "error.<kind>", then the generic retry message.
func Localize(err error, locale string) string {
	if err == nil {
		return ""
	}
	tag := MatchLocale(locale)
	catalog := ptBR
	if tag == language.English {
		catalog = en
	}
	p := message.NewPrinter(tag)

	var e *Error
	if !errors.As(err, &e) {
		return p.Sprintf(KeyGeneric)
	}

	if e.Key != "" {
		if _, ok := catalog[e.Key]; ok {
			return p.Sprintf(e.Key)
		}
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Kind == KindUnknown && e.Op != "" {
		if key := "error.generic." + e.Op; catalog[key] != "" {
			return p.Sprintf(key)
		}
	}
	if key := "error." + e.Kind.String(); catalog[key] != "" && e.Kind != KindUnknown {
		return p.Sprintf(key)
	}
	return p.Sprintf(KeyGeneric)
}

// Message returns the catalog string for key in the given locale.
func Message(key, locale string) string {
	return message.NewPrinter(MatchLocale(locale)).Sprintf(key)
}
