// auth.go — шлюз аутентификации College Module.
//
// Проверяет подпись Keycloak JWT через JWKS, после чего перечитывает
// учётную запись из раздела арендатора: роль из токена выбирает таблицу
// (users или students), college_id из токена служит только подсказкой
// маршрутизации. Статусы записи, колледжа и арендатора проверяются на
// каждом запросе — деактивация действует немедленно, а не по истечении
// токена. platform_admin — единственная роль без записи в БД, ей верят
// из токена напрямую.
//
// Итог — неизменяемый принципал в контексте запроса. Несуществующая
// учётная запись отклоняется тем же сообщением, что и невалидный токен,
// чтобы ответ не позволял перечислять идентификаторы.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/goplacement/college-module/internal/api/errors"
	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
	"github.com/bigkaa/goplacement/college-module/internal/domain/role"
	"github.com/bigkaa/goplacement/college-module/internal/service"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyPrincipal — аутентифицированный принципал в контексте запроса.
	ContextKeyPrincipal contextKey = "principal"
)

// msgInvalidToken — единое сообщение для невалидного токена и для
// не найденной учётной записи: ответы неразличимы снаружи.
const msgInvalidToken = "Невалидный или просроченный токен"

// tokenClaims — raw claims из Keycloak JWT. role и college_id попадают
// в токен через protocol mappers realm'а.
type tokenClaims struct {
	jwt.RegisteredClaims
	// Role — роль субъекта (закрытый набор ролей платформы).
	Role string `json:"role"`
	// CollegeID — колледж субъекта. Недоверенная подсказка маршрутизации:
	// выбирает раздел для поиска записи, авторитетен колледж самой записи.
	CollegeID string `json:"college_id,omitempty"`
}

// IdentitySource — перепроверка учётной записи из токена по хранилищу.
// Реализуется service.IdentityService.
type IdentitySource interface {
	// LoadPrincipal загружает принципала по проверенным claims.
	LoadPrincipal(ctx context.Context, r role.Role, subjectID, collegeID string) (model.Principal, error)
}

// JWTAuth — middleware шлюза аутентификации через JWKS Keycloak.
type JWTAuth struct {
	jwks      keyfunc.Keyfunc
	identity  IdentitySource
	issuer    string
	jwtLeeway time.Duration
	logger    *slog.Logger
}

// NewJWTAuth создаёт шлюз аутентификации с JWKS из Keycloak.
// jwksURL — URL к JWKS endpoint Keycloak.
// caCertPath — опциональный путь к CA-сертификату для TLS.
// issuer — ожидаемый issuer JWT (обычно https://keycloak/realms/goplacement).
// identity — перепроверка учётных записей по разделам арендаторов.
// jwksClientTimeout — таймаут HTTP-клиента JWKS (CM_JWKS_CLIENT_TIMEOUT).
// jwksRefreshInterval — интервал обновления JWKS-ключей (CM_JWKS_REFRESH_INTERVAL).
// jwtLeeway — допустимое отклонение времени при проверке JWT (CM_JWT_LEEWAY).
func NewJWTAuth(
	jwksURL string,
	caCertPath string,
	issuer string,
	identity IdentitySource,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	// HTTP-клиент для JWKS (с кастомным CA или стандартный)
	httpClient := http.DefaultClient
	if caCertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(caCertPath, jwksClientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	// JWKS Storage с фоновым обновлением.
	// NoErrorReturnFirstHTTPReq — стартуем даже если Keycloak ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &JWTAuth{
		jwks:      k,
		identity:  identity,
		issuer:    issuer,
		jwtLeeway: jwtLeeway,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт шлюз с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	identity IdentitySource,
	logger *slog.Logger,
) *JWTAuth {
	return &JWTAuth{
		jwks:     kf,
		identity: identity,
		issuer:   issuer,
		logger:   logger.With(slog.String("component", "jwt_auth")),
	}
}

// httpClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: caCertPool,
			},
		},
	}, nil
}

// Middleware возвращает HTTP middleware шлюза аутентификации.
// Порядок проверок фиксирован: заголовок → подпись и срок → роль →
// перечитывание записи → статусы → сверка с разделом запроса →
// принципал в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем Bearer token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			// Парсинг и валидация JWT через JWKS
			rawClaims := &tokenClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, rawClaims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, msgInvalidToken)
				return
			}

			if !token.Valid {
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}

			subject, err := rawClaims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			subjectRole, err := role.Parse(rawClaims.Role)
			if err != nil {
				j.logger.Debug("Недопустимая роль в токене",
					slog.String("role", rawClaims.Role),
					slog.String("subject", subject),
				)
				apierrors.Unauthorized(w, "Недопустимая роль в токене")
				return
			}

			// Перечитываем учётную запись из раздела арендатора
			principal, err := j.identity.LoadPrincipal(r.Context(), subjectRole, subject, rawClaims.CollegeID)
			if err != nil {
				j.rejectIdentity(w, err, subject)
				return
			}

			// Сверка с разделом, на который пришёл запрос: принципал
			// не-платформенной роли не проходит на чужой поддомен.
			if tc := TenantFromContext(r.Context()); tc.Resolved() && !principal.IsPlatformAdmin() &&
				tc.College.ID != principal.CollegeID() {
				j.logger.Warn("Запрос на чужой раздел отклонён",
					slog.String("subject", principal.ID()),
					slog.String("principal_college", principal.CollegeID()),
					slog.String("request_college", tc.College.ID),
				)
				apierrors.Forbidden(w, "Доступ к чужому колледжу запрещён")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rejectIdentity отображает отказ загрузки учётной записи в HTTP-ответ.
func (j *JWTAuth) rejectIdentity(w http.ResponseWriter, err error, subject string) {
	switch {
	case errors.Is(err, service.ErrIdentityNotFound):
		// То же сообщение, что и при невалидном токене: не раскрываем,
		// какие идентификаторы существуют.
		j.logger.Debug("Учётная запись из токена не найдена",
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
		apierrors.Unauthorized(w, msgInvalidToken)
	case errors.Is(err, service.ErrIdentityInactive):
		j.logger.Info("Запрос деактивированной учётной записи отклонён",
			slog.String("subject", subject),
		)
		apierrors.Inactive(w, "Учётная запись, колледж или арендатор деактивированы")
	case errors.Is(err, service.ErrUnavailable):
		j.logger.Error("Раздел арендатора недоступен при аутентификации",
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
		apierrors.Unavailable(w, "Сервис временно недоступен, повторите запрос")
	default:
		j.logger.Error("Ошибка загрузки учётной записи",
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// RequireRole возвращает middleware, требующий одну из указанных ролей.
// Чистая пост-проверка без побочных эффектов: принципал уже загружен
// шлюзом, здесь только сверяется роль.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireRole(allowed ...role.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				apierrors.Unauthorized(w, "Отсутствует принципал в контексте")
				return
			}

			if !role.Allowed(principal.Role(), allowed...) {
				names := make([]string, len(allowed))
				for i, a := range allowed {
					names[i] = a.String()
				}
				apierrors.Forbidden(w, fmt.Sprintf("Недостаточно прав: требуется роль %s", strings.Join(names, " или ")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// PrincipalFromContext извлекает принципала из контекста запроса.
// Второе значение — false, если шлюз аутентификации не отработал.
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(ContextKeyPrincipal).(model.Principal)
	return principal, ok
}

// --- ReadinessChecker для Keycloak ---

// KeycloakReadinessChecker — проверка доступности Keycloak через JWKS.
type KeycloakReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewKeycloakReadinessChecker создаёт checker доступности Keycloak.
// readinessTimeout — таймаут проверки готовности (CM_KEYCLOAK_READINESS_TIMEOUT).
func NewKeycloakReadinessChecker(jwksURL, caCertPath string, readinessTimeout time.Duration) (*KeycloakReadinessChecker, error) {
	client := &http.Client{Timeout: readinessTimeout}
	if caCertPath != "" {
		var err error
		client, err = httpClientWithCA(caCertPath, readinessTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA для readiness checker: %w", err)
		}
	}

	return &KeycloakReadinessChecker{
		jwksURL: jwksURL,
		client:  client,
	}, nil
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint Keycloak.
func (k *KeycloakReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return statusFail, fmt.Sprintf("Keycloak JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("Keycloak JWKS вернул статус %d", resp.StatusCode)
	}

	// Проверяем, что ответ — валидный JSON с ключами
	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("Keycloak JWKS: невалидный JSON: %v", err)
	}

	if len(jwksResp.Keys) == 0 {
		return "degraded", "Keycloak JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}

// Close освобождает ресурсы шлюза аутентификации.
func (j *JWTAuth) Close() {
	// keyfunc v3 не требует явного закрытия
}
