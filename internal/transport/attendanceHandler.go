package transport

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/aurak-emp/attendance/internal/entity"
	"github.com/aurak-emp/attendance/internal/service"
)

type AttendanceHandler struct {
	attendanceService service.AttendanceService
}

func NewAttendanceHandler(attendanceService service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService}
}

// CheckInRequest представляет запрос от сканера на входе. Длину кода
// здесь не проверяем: обрезанный скан просто не найдет запись и уйдет
// штатным 404
type CheckInRequest struct {
	Barcode string `json:"barcode" binding:"required"`
}

// Register регистрирует участника на мероприятие
func (h *AttendanceHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"errors": validationErrors(&req, err),
		})
		return
	}

	result, err := h.attendanceService.Register(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrEventNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"status":  "error",
				"message": "Event not found",
			})
		case errors.Is(err, entity.ErrInvalidAffiliation):
			c.JSON(http.StatusBadRequest, gin.H{
				"status": "error",
				"errors": map[string]string{"affiliation": "must be one of faculty, student, staff, external"},
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  "error",
				"message": "Registration failed",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":       "success",
		"message":      "Registration successful",
		"notification": result.Notification,
		"attendee":     result.Attendance,
	})
}

// CheckIn отмечает участника по отсканированному штрих-коду.
// Любой 2xx-ответ сканер трактует как "пропустить", поэтому исход
// различается полем status в теле, а не HTTP-кодом.
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid barcode payload",
		})
		return
	}

	result, err := h.attendanceService.CheckIn(c.Request.Context(), strings.ToUpper(req.Barcode))
	if err != nil {
		if errors.Is(err, entity.ErrAttendeeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  "error",
				"message": "Attendee not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Check-in failed",
		})
		return
	}

	message := "Check-in successful"
	if result.AlreadyPresent {
		message = fmt.Sprintf("%s already checked in", result.Name)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"message":  message,
		"attendee": result,
	})
}

// GetPresent возвращает отмеченных участников мероприятия в порядке отметки.
// Тело ответа — чистый JSON-массив записей, без конверта: его потребляют
// табло и экспорт в таблицы.
func (h *AttendanceHandler) GetPresent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("event_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid event id",
		})
		return
	}

	attendees, err := h.attendanceService.GetPresent(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to get present attendees",
		})
		return
	}

	c.JSON(http.StatusOK, attendees)
}

// GetEventAttendees возвращает полный список регистраций мероприятия
func (h *AttendanceHandler) GetEventAttendees(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid event id",
		})
		return
	}

	attendees, err := h.attendanceService.GetEventRoster(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to get event attendees",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"event_id":  eventID,
		"count":     len(attendees),
		"attendees": attendees,
	})
}

// GetEventStats возвращает агрегированную статистику посещаемости
func (h *AttendanceHandler) GetEventStats(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid event id",
		})
		return
	}

	stats, err := h.attendanceService.GetEventStats(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to get event stats",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"stats":  stats,
	})
}

// validationErrors превращает ошибки валидатора в карту поле→сообщение,
// ключи — json-теги структуры запроса
func validationErrors(req interface{}, err error) map[string]string {
	out := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["body"] = "invalid request body"
		return out
	}

	t := reflect.TypeOf(req)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for _, fe := range verrs {
		name := fe.Field()
		if field, ok := t.FieldByName(fe.StructField()); ok {
			if tag := strings.Split(field.Tag.Get("json"), ",")[0]; tag != "" && tag != "-" {
				name = tag
			}
		}
		out[name] = validationMessage(fe)
	}

	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	default:
		return "invalid value"
	}
}
