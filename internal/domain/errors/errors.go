package errors

import (
	"fmt"
)

type ErrKeywordNotFound struct {
	KeywordID int64
}

func (e *ErrKeywordNotFound) Error() string {
	return fmt.Sprintf("ключевое слово не найдено: %d", e.KeywordID)
}

func (e *ErrKeywordNotFound) Is(target error) bool {
	_, ok := target.(*ErrKeywordNotFound)
	return ok
}

type ErrKeywordNotTracked struct {
	ChatID    int64
	KeywordID int64
}

func (e *ErrKeywordNotTracked) Error() string {
	return fmt.Sprintf("ключевое слово %d не отслеживается в чате %d", e.KeywordID, e.ChatID)
}

func (e *ErrKeywordNotTracked) Is(target error) bool {
	_, ok := target.(*ErrKeywordNotTracked)
	return ok
}

type ErrKeywordAlreadyTracked struct {
	ChatID     int64
	SearchTerm string
}

func (e *ErrKeywordAlreadyTracked) Error() string {
	return fmt.Sprintf("ключевое слово %q уже отслеживается в чате %d", e.SearchTerm, e.ChatID)
}

func (e *ErrKeywordAlreadyTracked) Is(target error) bool {
	_, ok := target.(*ErrKeywordAlreadyTracked)
	return ok
}

type ErrChatNotFound struct {
	ChatID int64
}

func (e *ErrChatNotFound) Error() string {
	return fmt.Sprintf("чат не найден: %d", e.ChatID)
}

func (e *ErrChatNotFound) Is(target error) bool {
	_, ok := target.(*ErrChatNotFound)
	return ok
}

type ErrListingNotFound struct {
	ExternalItemID string
}

func (e *ErrListingNotFound) Error() string {
	return "объявление не найдено: " + e.ExternalItemID
}

func (e *ErrListingNotFound) Is(target error) bool {
	_, ok := target.(*ErrListingNotFound)
	return ok
}

type ErrInvalidArgument struct {
	Message string
}

func (e *ErrInvalidArgument) Error() string {
	return fmt.Sprintf("некорректный аргумент: %s", e.Message)
}

func (e *ErrInvalidArgument) Is(target error) bool {
	_, ok := target.(*ErrInvalidArgument)
	return ok
}

type ErrMissingRequiredField struct {
	FieldName string
}

func (e *ErrMissingRequiredField) Error() string {
	return fmt.Sprintf("отсутствует обязательное поле: %s", e.FieldName)
}

type ErrInvalidValue struct {
	FieldName string
	Value     string
}

func (e *ErrInvalidValue) Error() string {
	return fmt.Sprintf("некорректное значение '%s' для поля '%s'", e.Value, e.FieldName)
}

func (e *ErrInvalidValue) Is(target error) bool {
	_, ok := target.(*ErrInvalidValue)
	return ok
}

type ErrUnknownDBAccessType struct {
	AccessType string
}

func (e *ErrUnknownDBAccessType) Error() string {
	return fmt.Sprintf("неизвестный тип доступа к базе данных: %s", e.AccessType)
}

type ErrUnknownQueueBackend struct {
	Backend string
}

func (e *ErrUnknownQueueBackend) Error() string {
	return fmt.Sprintf("неизвестный бэкенд очереди: %s", e.Backend)
}

type ErrUnknownTransport struct {
	Transport string
}

func (e *ErrUnknownTransport) Error() string {
	return fmt.Sprintf("неизвестный транспорт доставки: %s", e.Transport)
}

// ErrUnknownJobType возникает, когда для типа задачи не зарегистрирован обработчик.
type ErrUnknownJobType struct {
	JobType string
}

func (e *ErrUnknownJobType) Error() string {
	return "не зарегистрирован обработчик для задачи: " + e.JobType
}

func (e *ErrUnknownJobType) Is(target error) bool {
	_, ok := target.(*ErrUnknownJobType)
	return ok
}

type ErrInvalidPayload struct {
	JobType string
	Cause   error
}

func (e *ErrInvalidPayload) Error() string {
	return fmt.Sprintf("некорректные данные задачи %s: %v", e.JobType, e.Cause)
}

func (e *ErrInvalidPayload) Unwrap() error {
	return e.Cause
}

type ErrJobNotFound struct {
	JobID string
}

func (e *ErrJobNotFound) Error() string {
	return "задача не найдена: " + e.JobID
}

func (e *ErrJobNotFound) Is(target error) bool {
	_, ok := target.(*ErrJobNotFound)
	return ok
}

// ErrJobClaimLost - задача уже возвращена в очередь или завершена после истечения захвата.
type ErrJobClaimLost struct {
	JobID string
}

func (e *ErrJobClaimLost) Error() string {
	return "захват задачи утерян: " + e.JobID
}

func (e *ErrJobClaimLost) Is(target error) bool {
	_, ok := target.(*ErrJobClaimLost)
	return ok
}

type ErrScrape struct {
	URL   string
	Cause error
}

func (e *ErrScrape) Error() string {
	return fmt.Sprintf("ошибка при получении страницы %s: %v", e.URL, e.Cause)
}

func (e *ErrScrape) Unwrap() error {
	return e.Cause
}

type ErrImageNotFound struct {
	URL string
}

func (e *ErrImageNotFound) Error() string {
	return "изображение не найдено на странице: " + e.URL
}

func (e *ErrImageNotFound) Is(target error) bool {
	_, ok := target.(*ErrImageNotFound)
	return ok
}

type ErrSendMessage struct {
	ChatID int64
	Cause  error
}

func (e *ErrSendMessage) Error() string {
	return fmt.Sprintf("ошибка при отправке сообщения в чат %d: %v", e.ChatID, e.Cause)
}

func (e *ErrSendMessage) Unwrap() error {
	return e.Cause
}

type ErrBuildSQLQuery struct {
	Operation string
	Cause     error
}

func (e *ErrBuildSQLQuery) Error() string {
	return fmt.Sprintf("ошибка при построении SQL запроса для %s: %v", e.Operation, e.Cause)
}

func (e *ErrBuildSQLQuery) Unwrap() error {
	return e.Cause
}

type ErrSQLExecution struct {
	Operation string
	Cause     error
}

func (e *ErrSQLExecution) Error() string {
	return fmt.Sprintf("ошибка при выполнении SQL запроса для %s: %v", e.Operation, e.Cause)
}

func (e *ErrSQLExecution) Unwrap() error {
	return e.Cause
}

type ErrSQLScan struct {
	Entity string
	Cause  error
}

func (e *ErrSQLScan) Error() string {
	return fmt.Sprintf("ошибка при сканировании %s: %v", e.Entity, e.Cause)
}

func (e *ErrSQLScan) Unwrap() error {
	return e.Cause
}

type ErrBadRequest struct {
	Message string
}

func (e *ErrBadRequest) Error() string {
	return fmt.Sprintf("bad request: %s", e.Message)
}

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP ошибка: %d", e.StatusCode)
	}

	return fmt.Sprintf("HTTP ошибка %d: %s", e.StatusCode, e.Message)
}

type ErrUnknownCommand struct {
	Command string
}

func (e *ErrUnknownCommand) Error() string {
	return fmt.Sprintf("неизвестная команда: %s", e.Command)
}

func (e *ErrUnknownCommand) Is(target error) bool {
	_, ok := target.(*ErrUnknownCommand)
	return ok
}
